// Package plan owns the plan catalogue and the per-category usage ceilings
// a merchant's plan imposes.
package plan

import "fmt"

// Category is a resource kind whose live row count a plan can cap.
type Category string

const (
	CategoryOutlets   Category = "outlets"
	CategoryUsers     Category = "users"
	CategoryProducts  Category = "products"
	CategoryCustomers Category = "customers"
	CategoryOrders    Category = "orders"
)

var Categories = []Category{CategoryOutlets, CategoryUsers, CategoryProducts, CategoryCustomers, CategoryOrders}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Unlimited is reported as the ceiling of a category without a limit.
const Unlimited int64 = -1

// Ceiling returns the configured limit for c. A missing or negative entry
// means unlimited.
func Ceiling(limits map[string]int64, c Category) int64 {
	v, ok := limits[string(c)]
	if !ok || v < 0 {
		return Unlimited
	}
	return v
}

// Decision is the outcome of comparing usage to a ceiling.
type Decision struct {
	Category  Category `json:"category"`
	Allowed   bool     `json:"allowed"`
	Current   int64    `json:"current"`
	Ceiling   int64    `json:"ceiling"`
	Unlimited bool     `json:"unlimited"`
}

// Evaluate allows creation while current usage is below the ceiling.
func Evaluate(limits map[string]int64, c Category, current int64) Decision {
	ceiling := Ceiling(limits, c)
	return Decision{
		Category:  c,
		Allowed:   ceiling == Unlimited || current < ceiling,
		Current:   current,
		Ceiling:   ceiling,
		Unlimited: ceiling == Unlimited,
	}
}

// ValidateLimits rejects unknown categories.
func ValidateLimits(limits map[string]int64) error {
	for k := range limits {
		if !Category(k).Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, k)
		}
	}
	return nil
}
