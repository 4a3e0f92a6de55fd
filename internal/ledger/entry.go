// Package ledger records manually submitted expense entries in two places
// at once: a durable tabular store and a notification sink. The two writes
// are independent and never rolled back; a partial failure tells the caller
// which side missed so the whole entry can be resubmitted.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies an expense. Free-form categories are expressed as
// "Other: <text>".
type Category string

const (
	CategoryInfrastructure Category = "Infrastructure"
	CategoryHosting        Category = "Hosting"
	CategorySoftware       Category = "Software"
	CategoryMarketing      Category = "Marketing"
	CategoryTravel         Category = "Travel"
	CategoryServices       Category = "Services"
	CategoryOther          Category = "Other"
)

// Categories returns the fixed set offered by the admin surface.
func Categories() []Category {
	return []Category{
		CategoryInfrastructure,
		CategoryHosting,
		CategorySoftware,
		CategoryMarketing,
		CategoryTravel,
		CategoryServices,
		CategoryOther,
	}
}

// Valid reports whether the category is one of the fixed set or a
// non-empty "Other: <text>" form.
func (c Category) Valid() bool {
	if rest, ok := strings.CutPrefix(string(c), "Other: "); ok {
		return strings.TrimSpace(rest) != ""
	}
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Entry is one expense record. Reference and CreatedAt are assigned by the
// writer; submitters leave them zero.
type Entry struct {
	Category    Category
	Amount      decimal.Decimal
	Currency    string
	Epoch       uint64
	EpochKnown  bool
	TxReference string
	Author      string
	Notes       string

	Reference string
	CreatedAt time.Time
}

func (e Entry) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("unknown category %q", e.Category)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", e.Amount)
	}
	if strings.TrimSpace(e.Author) == "" {
		return fmt.Errorf("author is required")
	}
	return nil
}
