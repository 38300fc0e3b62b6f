package service

// MaxRemovalsPerBox is how many content lines a customer may strip from one
// box in a single save.  The count starts over on every save and is checked
// against the box's live content.
const MaxRemovalsPerBox = 2

// RemovalVerdict is the outcome of ValidateRemovals.  Every requested name
// lands in exactly one of Accepted or Rejected; OverCap is the subset of
// Rejected that was present in the box but came after the cap was reached.
type RemovalVerdict struct {
	Accepted []string
	Rejected []string
	OverCap  []string
}

// ValidateRemovals applies the removal rule to requested, in order: a name is
// accepted when it is one of current, was not accepted already, and fewer
// than MaxRemovalsPerBox names have been accepted so far.
func ValidateRemovals(current, requested []string) RemovalVerdict {
	present := make(map[string]struct{}, len(current))
	for _, n := range current {
		present[n] = struct{}{}
	}
	v := RemovalVerdict{Accepted: []string{}, Rejected: []string{}}
	taken := make(map[string]struct{}, MaxRemovalsPerBox)
	for _, name := range requested {
		_, ok := present[name]
		_, dup := taken[name]
		switch {
		case !ok || dup:
			v.Rejected = append(v.Rejected, name)
		case len(v.Accepted) >= MaxRemovalsPerBox:
			v.Rejected = append(v.Rejected, name)
			v.OverCap = append(v.OverCap, name)
		default:
			taken[name] = struct{}{}
			v.Accepted = append(v.Accepted, name)
		}
	}
	return v
}
