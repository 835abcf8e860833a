package rowpager

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SortOrder defines the sort order of the requested dataset.
type SortOrder string

const (
	SortASC  SortOrder = "ASC"
	SortDESC SortOrder = "DESC"
)

// ParseSortOrder accepts "asc"/"desc" in any case. Empty input yields def.
func ParseSortOrder(s string, def SortOrder) (SortOrder, error) {
	if s == "" {
		return def, nil
	}

	o := SortOrder(strings.ToUpper(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("%w: invalid sort order '%s'", ErrInvalidParams, s)
	}

	return o, nil
}

func (o SortOrder) Valid() bool {
	return o == SortASC || o == SortDESC
}

// Reverse returns the opposite order. Backward pages are queried in reverse
// and flipped back before they are returned.
func (o SortOrder) Reverse() SortOrder {
	return lo.Ternary(o == SortASC, SortDESC, SortASC)
}

func (o SortOrder) ForOperator() Operator {
	switch o {
	case SortASC:
		return OperatorGT
	case SortDESC:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map sort order '%s' to operator", o))
	}
}

type (
	Orderings []OrderBy
	OrderBy   struct {
		Column string
		Order  SortOrder
	}

	ColumnAlias = string

	// ColumnMapping maps external column aliases to fully qualified column names.
	// Key is an external alias, value is an internal column name.
	ColumnMapping = map[ColumnAlias]string
)

var _availableColumnNameSymbols = append([]rune("_.'`\""), lo.AlphanumericCharset...)

// validateColumnName guards against SQL injection by restricting allowed
// characters in column names, which are written into raw SQL.
func validateColumnName(column string) error {
	if column == "" {
		return fmt.Errorf("empty column name")
	}

	if !lo.Every(_availableColumnNameSymbols, []rune(column)) {
		return fmt.Errorf("column name contains forbidden symbols '%s'", column)
	}

	return nil
}

func (o OrderBy) validate() error {
	if !o.Order.Valid() {
		return fmt.Errorf("invalid sort order '%s'", o.Order)
	}

	return validateColumnName(o.Column)
}

// orderingsFor builds Orderings for columns sharing one sort order.
func orderingsFor(order SortOrder, columns ...string) Orderings {
	return lo.Map(columns, func(column string, _ int) OrderBy {
		return OrderBy{Column: column, Order: order}
	})
}

// Columns returns ordering column names in declared order.
func (o Orderings) Columns() []string {
	return lo.Map(o, func(ordering OrderBy, _ int) string {
		return ordering.Column
	})
}

// Reverse flips every ordering. Used for backward traversal.
func (o Orderings) Reverse() Orderings {
	return lo.Map(o, func(ordering OrderBy, _ int) OrderBy {
		return OrderBy{Column: ordering.Column, Order: ordering.Order.Reverse()}
	})
}

// ToSQLSlice converts Orderings to a slice of strings in the form
// "<order_column> <sort_order>" suitable for SQL query builders.
//
// Example: for Orderings: [{"a", "ASC"}, {"b", "DESC"}] returns ["a ASC", "b DESC"].
func (o Orderings) ToSQLSlice() []string {
	ret := make([]string, 0, len(o))
	for _, ordering := range o {
		ret = append(ret, fmt.Sprintf("%s %s", ordering.Column, ordering.Order))
	}

	return ret
}

// ToSQL converts Orderings to a single string
// "<order_column_1> <sort_order_1>, <order_column_2> <sort_order_2>".
//
// Usage:
//
//	query := fmt.Sprintf("SELECT * FROM table ORDER BY %s", orderings.ToSQL())
func (o Orderings) ToSQL() string {
	return strings.Join(o.ToSQLSlice(), ", ")
}

// nullPlacement returns an ORDER BY term that moves NULL values of column
// after every other value (nullsLast) or before them. It must precede the
// Orderings of column.
func nullPlacement(column string, nullsLast bool) string {
	return fmt.Sprintf("%s IS NULL %s", column, lo.Ternary(nullsLast, SortASC, SortDESC))
}

// Apply applies the ordering to a gorm query.
func (o Orderings) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.ToSQL())
}

func (o Orderings) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty ordering list")
	}

	var err error
	for _, ordering := range o {
		err = ordering.validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// ParseSort builds Orderings from a list of strings in the format
// "column asc|desc". Column aliases are resolved via ColumnMapping.
// Returns an error if an alias is not found in the mapping.
func ParseSort(stringsOrderings []string, columnMapping ColumnMapping) (Orderings, error) {
	ret := make([]OrderBy, 0, len(stringsOrderings))

	for _, stringOrdering := range stringsOrderings {
		cutStringOrdering := strings.Fields(stringOrdering)
		if len(cutStringOrdering) != 2 {
			return nil, fmt.Errorf("invalid ordering string format '%s'", stringOrdering)
		}

		columnName, err := ResolveColumn(cutStringOrdering[0], columnMapping)
		if err != nil {
			return nil, err
		}

		order := SortOrder(strings.ToUpper(cutStringOrdering[1]))
		if !order.Valid() {
			return nil, fmt.Errorf("invalid sort order '%s'", cutStringOrdering[1])
		}

		ret = append(ret, OrderBy{
			Column: columnName,
			Order:  order,
		})
	}

	return ret, nil
}

// ResolveColumn maps a public alias to its column name. Unknown aliases are
// reported together with the closest known alias.
func ResolveColumn(alias ColumnAlias, columnMapping ColumnMapping) (string, error) {
	columnName := columnMapping[alias]
	if columnName == "" {
		return "", fmt.Errorf(
			"%w: invalid column alias '%s'. closest: '%s'",
			ErrInvalidParams, alias, closestAlias(alias, lo.Keys(columnMapping)),
		)
	}

	return columnName, nil
}

func closestAlias(input ColumnAlias, dataSet []ColumnAlias) ColumnAlias {
	minDist := math.MaxInt
	closest := ""

	for _, dataSetAlias := range dataSet {
		dist := levenshtein([]rune(dataSetAlias), []rune(input))
		if dist < minDist || (dist == minDist && dataSetAlias < closest) {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}
