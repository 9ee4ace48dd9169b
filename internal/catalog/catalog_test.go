package catalog

import (
	"errors"
	"testing"

	"duorico/internal/core"
)

func TestLabelKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		typ  core.TransactionType
		want string
	}{
		{"salary", core.Income, "Salary"},
		{"other", core.Income, "Other"},
		{"groceries", core.Expense, "Groceries"},
		{"rent_mortgage", core.Expense, "Rent/Mortgage"},
		{"other", core.Expense, "Other"},
	}
	for _, tc := range cases {
		got, err := Label(tc.code, tc.typ)
		if err != nil {
			t.Errorf("Label(%q, %s): %v", tc.code, tc.typ, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Label(%q, %s) = %q, want %q", tc.code, tc.typ, got, tc.want)
		}
	}
}

func TestLabelUnknownCodeFallsBack(t *testing.T) {
	got, err := Label("unknown_code", core.Expense)
	if err != nil {
		t.Fatalf("unknown code must not error: %v", err)
	}
	if got != "unknown code" {
		t.Fatalf("fallback label = %q, want %q", got, "unknown code")
	}
}

func TestLabelUnknownType(t *testing.T) {
	if _, err := Label("salary", "transfer"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("salary", core.Income) {
		t.Error("salary should be a valid income category")
	}
	if IsValid("salary", core.Expense) {
		t.Error("salary is not an expense category")
	}
	if IsValid("nope", core.Income) {
		t.Error("unknown code reported valid")
	}
	if IsValid("salary", "transfer") {
		t.Error("unknown type reported valid")
	}
}

func TestListSortedWithOther(t *testing.T) {
	for _, typ := range []core.TransactionType{core.Income, core.Expense} {
		cats, err := List(typ)
		if err != nil {
			t.Fatalf("List(%s): %v", typ, err)
		}
		if len(cats) == 0 {
			t.Fatalf("List(%s) empty", typ)
		}
		hasOther := false
		for i := 1; i < len(cats); i++ {
			if cats[i-1].Label > cats[i].Label {
				t.Errorf("List(%s) not sorted at %d", typ, i)
			}
		}
		for _, c := range cats {
			if c.Code == "other" {
				hasOther = true
			}
		}
		if !hasOther {
			t.Errorf("List(%s) missing the other entry", typ)
		}
	}
	if _, err := List("transfer"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType")
	}
}
