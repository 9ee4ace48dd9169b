// Package catalog maps category codes to display labels, one static table
// per transaction type. The tables ship embedded in the binary; lookups of
// unknown codes never fail.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"duorico/internal/core"

	"github.com/BurntSushi/toml"
)

//go:embed categories.toml
var categoriesTOML []byte

// Category is one catalog entry: a stable code and its display label.
type Category struct {
	Code  string `toml:"code" json:"code"`
	Label string `toml:"label" json:"label"`
}

// ErrUnknownType is the only error the catalog produces: a lookup with a
// transaction type outside the closed income/expense set.
var ErrUnknownType = errors.New("unknown transaction type")

type tables struct {
	Income  []Category `toml:"income"`
	Expense []Category `toml:"expense"`
}

var (
	incomeByCode  map[string]string
	expenseByCode map[string]string
	incomeList    []Category
	expenseList   []Category
)

func init() {
	var t tables
	if err := toml.Unmarshal(categoriesTOML, &t); err != nil {
		panic(fmt.Sprintf("catalog: parse embedded categories: %v", err))
	}
	incomeByCode = index(t.Income)
	expenseByCode = index(t.Expense)
	if _, ok := incomeByCode["other"]; !ok {
		panic(`catalog: income table missing required "other" entry`)
	}
	if _, ok := expenseByCode["other"]; !ok {
		panic(`catalog: expense table missing required "other" entry`)
	}
	incomeList = sortedByLabel(t.Income)
	expenseList = sortedByLabel(t.Expense)
}

func index(cats []Category) map[string]string {
	m := make(map[string]string, len(cats))
	for _, c := range cats {
		m[c.Code] = c.Label
	}
	return m
}

func sortedByLabel(cats []Category) []Category {
	out := make([]Category, len(cats))
	copy(out, cats)
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Label returns the display label for a code within the given type's table.
// Unknown codes fall back to the raw code with underscores replaced by
// spaces; only an unrecognized type is an error.
func Label(code string, typ core.TransactionType) (string, error) {
	table, err := tableFor(typ)
	if err != nil {
		return "", err
	}
	if label, ok := table[code]; ok {
		return label, nil
	}
	return strings.ReplaceAll(code, "_", " "), nil
}

// IsValid reports whether code belongs to the catalog table for typ.
func IsValid(code string, typ core.TransactionType) bool {
	table, err := tableFor(typ)
	if err != nil {
		return false
	}
	_, ok := table[code]
	return ok
}

// List returns the catalog entries for one type, sorted by label.
func List(typ core.TransactionType) ([]Category, error) {
	switch typ {
	case core.Income:
		return incomeList, nil
	case core.Expense:
		return expenseList, nil
	default:
		return nil, ErrUnknownType
	}
}

func tableFor(typ core.TransactionType) (map[string]string, error) {
	switch typ {
	case core.Income:
		return incomeByCode, nil
	case core.Expense:
		return expenseByCode, nil
	default:
		return nil, ErrUnknownType
	}
}
