package calculator

import (
	"context"
	"sort"
)

// Pack is a single line of a plan: Quantity packs of Size items each.
type Pack struct {
	Size     int
	Quantity int
}

// PackPlan is the outcome of a calculation.
// Packs only contains sizes that are actually used. TotalItems and TotalPacks
// are derived from Packs; TotalItems is never below OrderAmount.
type PackPlan struct {
	OrderAmount int
	Packs       map[int]int
	TotalItems  int
	TotalPacks  int
	// PackSizes lists the normalised sizes the plan was chosen from, ascending.
	PackSizes []int
}

// Waste returns the number of items shipped beyond the order amount.
func (p PackPlan) Waste() int {
	return p.TotalItems - p.OrderAmount
}

// Breakdown returns the packs ordered from the largest size to the smallest.
func (p PackPlan) Breakdown() []Pack {
	out := make([]Pack, 0, len(p.Packs))
	for size, qty := range p.Packs {
		out = append(out, Pack{Size: size, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Size > out[j].Size
	})
	return out
}

// Calculator describes the behaviour required from a pack calculator.
// CalculatePacks returns ctx.Err() if ctx is done before the plan is found.
type Calculator interface {
	CalculatePacks(ctx context.Context, amount int, packSizes []int) (PackPlan, error)
}
