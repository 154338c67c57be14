package storage

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/eugenenazirov/pack-calculator/internal/calculator"
)

// MaxPackSizes bounds the registry to what a single calculation accepts.
const MaxPackSizes = calculator.MaxPackSizes

var (
	// ErrInvalidSize indicates a pack size that is not a positive integer.
	ErrInvalidSize = errors.New("pack size must be a positive integer")
	// ErrDuplicate indicates the pack size is already registered.
	ErrDuplicate = errors.New("pack size already exists")
	// ErrNotFound indicates the pack size is not registered.
	ErrNotFound = errors.New("pack size not found")
	// ErrLastSizeRemoval indicates an attempt to remove the only remaining pack size.
	ErrLastSizeRemoval = errors.New("cannot remove the last remaining pack size")
	// ErrInvalidPackSizes indicates a replacement set that is empty or contains non-positive values.
	ErrInvalidPackSizes = errors.New("pack sizes must contain at least one positive integer")
	// ErrTooManySizes indicates the registry would exceed MaxPackSizes entries.
	ErrTooManySizes = errors.New("pack size limit reached")
)

var defaultPackSizes = []int{250, 500, 1000, 2000, 5000}

// Storage provides access to the registry of allowed pack sizes.
// Every method returns the resulting set sorted ascending.
type Storage interface {
	GetPackSizes() ([]int, error)
	SetPackSizes(sizes []int) ([]int, error)
	AddPackSize(size int) ([]int, error)
	RemovePackSize(size int) ([]int, error)
}

// Snapshotter persists the registry between restarts.
type Snapshotter interface {
	// Load returns the stored sizes, or ok=false when nothing was stored yet.
	Load() (sizes []int, ok bool, err error)
	Save(sizes []int) error
}

// Registry keeps pack sizes in memory and guards access with a RWMutex.
// When a Snapshotter is attached every mutation is written through before it
// becomes visible; a failed write leaves the registry unchanged.
type Registry struct {
	mu        sync.RWMutex
	packSizes []int
	snapshot  Snapshotter
}

// Option configures a Registry.
type Option func(*Registry)

// WithSnapshotter attaches persistence to the registry.
func WithSnapshotter(s Snapshotter) Option {
	return func(r *Registry) {
		r.snapshot = s
	}
}

// NewMemoryStorage initialises a non-persistent registry with the default pack sizes.
func NewMemoryStorage() *Registry {
	return &Registry{
		packSizes: cloneAndSort(defaultPackSizes),
	}
}

// NewRegistry builds a registry seeded with initial. If a Snapshotter holds a
// previously saved set, that set wins over initial; otherwise initial is saved.
func NewRegistry(initial []int, opts ...Option) (*Registry, error) {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}

	if r.snapshot != nil {
		stored, ok, err := r.snapshot.Load()
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			normalized, err := normalizePackSizes(stored)
			if err != nil {
				return nil, fmt.Errorf("snapshot: %w", err)
			}
			r.packSizes = normalized
			return r, nil
		}
	}

	normalized, err := normalizePackSizes(initial)
	if err != nil {
		return nil, err
	}
	if r.snapshot != nil {
		if err := r.snapshot.Save(normalized); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
	}
	r.packSizes = normalized
	return r, nil
}

// DefaultPackSizes returns a copy of the default pack sizes slice.
func DefaultPackSizes() []int {
	return cloneAndSort(defaultPackSizes)
}

// GetPackSizes returns a defensive copy of the currently configured pack sizes.
func (r *Registry) GetPackSizes() ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneAndSort(r.packSizes), nil
}

// SetPackSizes validates, normalises, and replaces the whole set.
func (r *Registry) SetPackSizes(sizes []int) ([]int, error) {
	normalized, err := normalizePackSizes(sizes)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.commit(normalized)
}

// AddPackSize registers a new pack size.
func (r *Registry) AddPackSize(size int) ([]int, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found := slices.BinarySearch(r.packSizes, size); found {
		return nil, ErrDuplicate
	}
	if len(r.packSizes) >= MaxPackSizes {
		return nil, ErrTooManySizes
	}

	next := append(cloneAndSort(r.packSizes), size)
	sort.Ints(next)
	return r.commit(next)
}

// RemovePackSize unregisters a pack size. The last remaining size cannot be removed.
func (r *Registry) RemovePackSize(size int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, found := slices.BinarySearch(r.packSizes, size)
	if !found {
		return nil, ErrNotFound
	}
	if len(r.packSizes) == 1 {
		return nil, ErrLastSizeRemoval
	}

	next := slices.Delete(cloneAndSort(r.packSizes), idx, idx+1)
	return r.commit(next)
}

// commit must be called with the write lock held. next must already be normalised.
func (r *Registry) commit(next []int) ([]int, error) {
	if r.snapshot != nil {
		if err := r.snapshot.Save(next); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
	}
	r.packSizes = next
	return cloneAndSort(next), nil
}

func cloneAndSort(src []int) []int {
	if len(src) == 0 {
		return []int{}
	}

	out := make([]int, len(src))
	copy(out, src)
	sort.Ints(out)
	return out
}

func normalizePackSizes(packSizes []int) ([]int, error) {
	if len(packSizes) == 0 {
		return nil, ErrInvalidPackSizes
	}

	unique := make(map[int]struct{}, len(packSizes))
	for _, size := range packSizes {
		if size <= 0 {
			return nil, ErrInvalidPackSizes
		}
		unique[size] = struct{}{}
	}
	if len(unique) > MaxPackSizes {
		return nil, ErrTooManySizes
	}

	out := make([]int, 0, len(unique))
	for size := range unique {
		out = append(out, size)
	}
	sort.Ints(out)
	return out, nil
}
