package rowpager

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// Operator is a comparison operator of a seek predicate.
type Operator string

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// operatorEq only appears in the equality prefix of a seek branch.
	operatorEq Operator = "="

	// NULL tests of a nullable sort column. They take no value.
	operatorIsNull    Operator = "IS NULL"
	operatorIsNotNull Operator = "IS NOT NULL"
)

func (o Operator) unary() bool {
	return o == operatorIsNull || o == operatorIsNotNull
}

type (
	// seekTerm is a single comparison "Column Operator Value".
	seekTerm struct {
		Column   string
		Operator Operator
		Value    any
	}

	// seekBranch is a conjunction of terms.
	seekBranch []seekTerm

	// seekPredicate is a disjunction of branches, i.e. a boolean expression
	// in disjunctive normal form:
	//
	//	P = B1 OR B2 ... OR Bn, where Bi = Ti1 AND Ti2 ... AND Tim.
	//
	// A seek position over n ordering columns always expands into n branches,
	// the i-th branch holding i terms.
	seekPredicate []seekBranch
)

// newSeekPredicate expands a seek position into a strict lexicographic tuple
// comparison over the orderings:
//
//	(C1 O1 V1) OR (C1 = V1 AND C2 O2 V2) OR (C1 = V1 AND C2 = V2 AND C3 O3 V3)
//
// Oi is derived from the i-th ordering, so the predicate and the ORDER BY are
// always bound to the same column list.
//
// IMPORTANT:
// len(values) must equal len(orderings), otherwise the predicate is empty and
// matches every row. The last ordering column must be unique, otherwise rows
// sharing the full tuple are skipped.
func newSeekPredicate(orderings Orderings, values []any) seekPredicate {
	if len(orderings) == 0 || len(orderings) != len(values) {
		return nil
	}

	return lo.Map(orderings, func(ordering OrderBy, i int) seekBranch {
		branch := make(seekBranch, 0, i+1)
		for j := range i {
			branch = append(branch, seekTerm{Column: orderings[j].Column, Operator: operatorEq, Value: values[j]})
		}

		return append(branch, seekTerm{Column: ordering.Column, Operator: ordering.Order.ForOperator(), Value: values[i]})
	})
}

// newNullableSeekPredicate is newSeekPredicate for orderings whose first
// column may hold NULL. NULL rows form one block placed after every value
// when nullsLast is set and before them otherwise. Inside the block rows are
// ordered by the remaining columns. A nil first value positions the seek
// inside the NULL block.
//
// Forward over (score DESC, id DESC) with NULLs last:
//
//	score = 3:    (score < 3) OR (score = 3 AND id < x) OR (score IS NULL)
//	score = NULL: (score IS NULL AND id < x)
//
// IMPORTANT:
// The ORDER BY must place NULLs the same way, see nullPlacement.
func newNullableSeekPredicate(orderings Orderings, values []any, nullsLast bool) seekPredicate {
	if len(orderings) == 0 || len(orderings) != len(values) {
		return nil
	}

	column := orderings[0].Column

	if values[0] != nil {
		ret := newSeekPredicate(orderings, values)
		if nullsLast {
			ret = append(ret, seekBranch{{Column: column, Operator: operatorIsNull}})
		}

		return ret
	}

	ret := lo.Map(newSeekPredicate(orderings[1:], values[1:]), func(branch seekBranch, _ int) seekBranch {
		return append(seekBranch{{Column: column, Operator: operatorIsNull}}, branch...)
	})
	if !nullsLast {
		ret = append(ret, seekBranch{{Column: column, Operator: operatorIsNotNull}})
	}

	return ret
}

// Expression returns the predicate as a gorm clause. Single element branches
// and predicates are not wrapped, so a one column seek renders as "id > ?".
// An empty predicate yields nil.
func (p seekPredicate) Expression() clause.Expression {
	branches := make([]clause.Expression, 0, len(p))
	for _, branch := range p {
		if expr := branch.Expression(); expr != nil {
			branches = append(branches, expr)
		}
	}

	switch len(branches) {
	case 0:
		return nil
	case 1:
		return branches[0]
	default:
		return clause.Or(branches...)
	}
}

func (b seekBranch) Expression() clause.Expression {
	terms := lo.Map(b, func(term seekTerm, _ int) clause.Expression {
		return term.Expression()
	})

	switch len(terms) {
	case 0:
		return nil
	case 1:
		return terms[0]
	default:
		return clause.And(terms...)
	}
}

// Expression uses the "?" placeholder; the dialector rebinds it.
func (t seekTerm) Expression() clause.Expression {
	sql, args := t.SQL()

	return clause.Expr{SQL: sql, Vars: args}
}

// SQL renders the predicate as raw SQL with "?" placeholders.
//
// Example:
//
//	seekPredicate{
//		{{Column: "id", Operator: "<", Value: 10}},
//		{{Column: "id", Operator: "=", Value: 10}, {Column: "name", Operator: "<", Value: "abc"}},
//	}
//
// Result:
//
//	("((id < ?) OR (id = ? AND name < ?))", [10, 10, "abc"])
//
// An empty predicate renders as "TRUE".
func (p seekPredicate) SQL() (string, []any) {
	branches := make([]string, 0, len(p))
	args := make([]any, 0, len(p))

	for _, branch := range p {
		sql, branchArgs := branch.SQL()
		if sql == "" {
			continue
		}

		branches = append(branches, sql)
		args = append(args, branchArgs...)
	}

	if len(branches) == 0 {
		return "TRUE", nil
	}

	return fmt.Sprintf("(%s)", strings.Join(branches, " OR ")), args
}

func (b seekBranch) SQL() (string, []any) {
	if len(b) == 0 {
		return "", nil
	}

	terms := make([]string, 0, len(b))
	args := make([]any, 0, len(b))
	for _, term := range b {
		sql, termArgs := term.SQL()
		terms = append(terms, sql)
		args = append(args, termArgs...)
	}

	return fmt.Sprintf("(%s)", strings.Join(terms, " AND ")), args
}

func (t seekTerm) SQL() (string, []any) {
	if t.Operator.unary() {
		return fmt.Sprintf("%s %s", t.Column, t.Operator), nil
	}

	return fmt.Sprintf("%s %s ?", t.Column, t.Operator), []any{t.Value}
}

// SeekPredicate returns the raw SQL form of the lexicographic seek predicate
// for callers composing SQL by hand.
//
// Usage:
//
//	where, args := rowpager.SeekPredicate(orderings, values)
//	query := fmt.Sprintf("SELECT * FROM table WHERE %s ORDER BY %s", where, orderings.ToSQL())
func SeekPredicate(orderings Orderings, values []any) (string, []any) {
	return newSeekPredicate(orderings, values).SQL()
}
