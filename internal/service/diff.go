package service

// Diff compares the last saved selection with the current one and returns
// the ids to add (in current, not saved) and to remove (in saved, not
// current), each in the order of its source list and without duplicates.
func Diff(saved, current []int64) (add, remove []int64) {
	inSaved := toSet(saved)
	inCurrent := toSet(current)
	add = []int64{}
	remove = []int64{}
	seen := make(map[int64]struct{}, len(current))
	for _, id := range current {
		if _, ok := inSaved[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		add = append(add, id)
	}
	seen = make(map[int64]struct{}, len(saved))
	for _, id := range saved {
		if _, ok := inCurrent[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		remove = append(remove, id)
	}
	return add, remove
}

func toSet(ids []int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// minus returns the ids of a that are not in b, in a's order.
func minus(a, b []int64) []int64 {
	drop := toSet(b)
	var out []int64
	for _, id := range a {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
