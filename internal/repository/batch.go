package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Op is a parameterized multi-row statement. The concrete variants are
// InsertMany, DeleteMany and UpdateMany; Build and Exec switch over them.
type Op interface {
	batchOp()
}

// InsertMany inserts len(Rows) rows into Table. Every row must carry one
// value per column.
type InsertMany struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// DeleteMany deletes the rows of Table whose In column matches one of
// Values and which satisfy every Where equality.
type DeleteMany struct {
	Table  string
	Where  []Eq
	In     string
	Values []any
}

// UpdateMany applies the Set assignment list to the rows of Table whose In
// column matches one of Values. Set may reference other tables (correlated
// subqueries); its own placeholders are bound from SetArgs.
type UpdateMany struct {
	Table   string
	Set     string
	SetArgs []any
	Where   []Eq
	In      string
	Values  []any
}

// Eq is a column = value predicate.
type Eq struct {
	Column string
	Value  any
}

func (InsertMany) batchOp() {}
func (DeleteMany) batchOp() {}
func (UpdateMany) batchOp() {}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(names ...string) error {
	for _, n := range names {
		if !identRe.MatchString(n) {
			return fmt.Errorf("batch: invalid identifier %q", n)
		}
	}
	return nil
}

// Build renders op to a query with '?' placeholders and its arguments. An
// empty batch renders to an empty query.
func Build(op Op) (string, []any, error) {
	switch o := op.(type) {
	case InsertMany:
		return buildInsert(o)
	case DeleteMany:
		return buildDelete(o)
	case UpdateMany:
		return buildUpdate(o)
	default:
		return "", nil, fmt.Errorf("batch: unsupported op %T", op)
	}
}

func buildInsert(o InsertMany) (string, []any, error) {
	if len(o.Rows) == 0 {
		return "", nil, nil
	}
	if len(o.Columns) == 0 {
		return "", nil, fmt.Errorf("batch: insert into %s without columns", o.Table)
	}
	if err := checkIdent(append([]string{o.Table}, o.Columns...)...); err != nil {
		return "", nil, err
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(o.Columns)), ", ") + ")"
	tuples := make([]string, len(o.Rows))
	args := make([]any, 0, len(o.Rows)*len(o.Columns))
	for i, row := range o.Rows {
		if len(row) != len(o.Columns) {
			return "", nil, fmt.Errorf("batch: row %d has %d values, want %d", i, len(row), len(o.Columns))
		}
		tuples[i] = tuple
		args = append(args, row...)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", o.Table, strings.Join(o.Columns, ", "), strings.Join(tuples, ", "))
	return q, args, nil
}

func buildDelete(o DeleteMany) (string, []any, error) {
	if len(o.Values) == 0 {
		return "", nil, nil
	}
	where, args, err := buildWhere(o.Table, o.Where, o.In, o.Values)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM " + o.Table + " WHERE " + where, args, nil
}

func buildUpdate(o UpdateMany) (string, []any, error) {
	if len(o.Values) == 0 {
		return "", nil, nil
	}
	if strings.TrimSpace(o.Set) == "" {
		return "", nil, fmt.Errorf("batch: update of %s without assignments", o.Table)
	}
	where, args, err := buildWhere(o.Table, o.Where, o.In, o.Values)
	if err != nil {
		return "", nil, err
	}
	q := "UPDATE " + o.Table + " SET " + o.Set + " WHERE " + where
	return q, append(append([]any{}, o.SetArgs...), args...), nil
}

func buildWhere(table string, eqs []Eq, in string, values []any) (string, []any, error) {
	if err := checkIdent(table, in); err != nil {
		return "", nil, err
	}
	parts := make([]string, 0, len(eqs)+1)
	args := make([]any, 0, len(eqs)+len(values))
	for _, e := range eqs {
		if err := checkIdent(e.Column); err != nil {
			return "", nil, err
		}
		parts = append(parts, e.Column+" = ?")
		args = append(args, e.Value)
	}
	parts = append(parts, in+" IN (?)")
	q, inArgs, err := sqlx.In(strings.Join(parts, " AND "), append(args, values)...)
	if err != nil {
		return "", nil, err
	}
	return q, inArgs, nil
}

// Exec runs op on ext (a *sqlx.DB or *sqlx.Tx) and returns the number of
// affected rows. Empty batches do not reach the database.
func Exec(ctx context.Context, ext sqlx.ExtContext, op Op) (int64, error) {
	q, args, err := Build(op)
	if err != nil {
		return 0, err
	}
	if q == "" {
		return 0, nil
	}
	res, err := ext.ExecContext(ctx, ext.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Int64s adapts ids for the Values field of a batch op.
func Int64s(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Strings adapts names for the Values field of a batch op.
func Strings(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
