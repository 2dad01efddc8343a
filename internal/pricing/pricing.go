package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("plan not found")

const (
	Basic   = "basic"
	Premium = "premium"
	Elite   = "elite"
)

// Plan is a catalog entry. DurationDays is zero for lifetime plans.
type Plan struct {
	ID           string
	PriceCents   int64
	DurationDays int
}

func (p Plan) Lifetime() bool {
	return p.DurationDays <= 0
}

// ExpiresAt returns the expiry for a subscription activated at from, or nil
// for lifetime plans.
func (p Plan) ExpiresAt(from time.Time) *time.Time {
	if p.Lifetime() {
		return nil
	}
	t := from.AddDate(0, 0, p.DurationDays)
	return &t
}

func (p Plan) Price() string {
	return fmt.Sprintf("$%d", p.PriceCents/100)
}

func (p Plan) Duration() string {
	if p.Lifetime() {
		return "Lifetime"
	}
	return fmt.Sprintf("%d days", p.DurationDays)
}

func (p Plan) Title() string {
	return strings.ToUpper(p.ID)
}

var catalog = []Plan{
	{ID: Basic, PriceCents: 6500, DurationDays: 7},
	{ID: Premium, PriceCents: 13500, DurationDays: 30},
	{ID: Elite, PriceCents: 18000},
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func Lookup(id string) (Plan, error) {
	id = normalizeID(id)
	switch id {
	case Basic, Premium, Elite:
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// All returns the catalog in display order.
func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}
