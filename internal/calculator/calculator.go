package calculator

import (
	"context"
	"math"
	"sort"
)

// DefaultMaxAmount is the largest order amount accepted unless WithMaxAmount overrides it.
const DefaultMaxAmount = 10_000_000

// MaxPackSizes is the largest number of distinct pack sizes a calculation accepts.
const MaxPackSizes = 100

// cancelCheckInterval is how many table rows are filled between context checks.
const cancelCheckInterval = 1 << 14

const unreachable int32 = math.MaxInt32

type dpCalculator struct {
	maxAmount int
}

// Option configures the Calculator returned by New.
type Option func(*dpCalculator)

// WithMaxAmount overrides the largest order amount the calculator accepts.
// Non-positive values keep the default.
func WithMaxAmount(limit int) Option {
	return func(c *dpCalculator) {
		if limit > 0 {
			c.maxAmount = limit
		}
	}
}

// New creates a Calculator based on dynamic programming.
//
// The plan it returns never under-ships, ships as few surplus items as
// possible and, among plans with equal surplus, uses the fewest packs.
// Remaining ties go to larger pack sizes: the table is filled scanning sizes
// from largest to smallest and a choice is only replaced by a strictly
// smaller pack count.
func New(opts ...Option) Calculator {
	c := &dpCalculator{maxAmount: DefaultMaxAmount}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *dpCalculator) CalculatePacks(ctx context.Context, amount int, packSizes []int) (PackPlan, error) {
	if amount <= 0 {
		return PackPlan{}, ErrInvalidAmount
	}
	if amount > c.maxAmount {
		return PackPlan{}, ErrAmountTooLarge
	}
	sizes, err := normalizePackSizes(packSizes)
	if err != nil {
		return PackPlan{}, err
	}

	packs, err := solve(ctx, amount, sizes)
	if err != nil {
		return PackPlan{}, err
	}
	return newPlan(amount, packs, sizes), nil
}

// solve expects sizes to be normalised (unique, positive, ascending).
// It stops early with the context error once ctx is done.
func solve(ctx context.Context, amount int, sizes []int) (map[int]int, error) {
	smallest := sizes[0]
	if amount <= smallest {
		return map[int]int{smallest: 1}, nil
	}

	// Every reachable total is a multiple of the GCD, so the table can be
	// built in GCD units.
	g := sizes[0]
	for _, size := range sizes[1:] {
		g = gcd(g, size)
	}
	target := (amount + g - 1) / g
	steps := make([]int, len(sizes))
	for i, size := range sizes {
		steps[i] = size / g
	}

	// The first multiple of the smallest step at or above target is always
	// reachable, so the optimum never lies beyond limit.
	limit := target + steps[0] - 1

	counts := make([]int32, limit+1)
	choice := make([]int32, limit+1)
	for total := 1; total <= limit; total++ {
		if total%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		best, pick := unreachable, int32(-1)
		for i := len(steps) - 1; i >= 0; i-- {
			step := steps[i]
			if step > total {
				continue
			}
			prev := counts[total-step]
			if prev == unreachable {
				continue
			}
			if prev+1 < best {
				best = prev + 1
				pick = int32(i)
			}
		}
		counts[total] = best
		choice[total] = pick
	}

	chosen := target
	for counts[chosen] == unreachable {
		chosen++
	}

	result := make(map[int]int, len(sizes))
	for remaining := chosen; remaining > 0; {
		idx := choice[remaining]
		result[sizes[idx]]++
		remaining -= steps[idx]
	}
	return result, nil
}

func newPlan(amount int, packs map[int]int, sizes []int) PackPlan {
	plan := PackPlan{
		OrderAmount: amount,
		Packs:       packs,
		PackSizes:   sizes,
	}
	for size, qty := range packs {
		plan.TotalItems += size * qty
		plan.TotalPacks += qty
	}
	return plan
}

func normalizePackSizes(packSizes []int) ([]int, error) {
	if len(packSizes) == 0 {
		return nil, ErrNoFeasiblePlan
	}

	unique := make(map[int]struct{}, len(packSizes))
	for _, size := range packSizes {
		if size <= 0 {
			return nil, ErrInvalidPackSizes
		}
		unique[size] = struct{}{}
	}
	if len(unique) > MaxPackSizes {
		return nil, ErrTooManyPackSizes
	}

	normalized := make([]int, 0, len(unique))
	for size := range unique {
		normalized = append(normalized, size)
	}
	sort.Ints(normalized)

	return normalized, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
