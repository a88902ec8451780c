// Package binding resolves the real implementation of each modeled routine.
//
// A Slot is resolved at most once, on first use, through a Resolver that
// plays the role of the dynamic linker's "next definition" lookup. The
// resolution is guarded by sync.Once, so a Slot may be shared freely across
// goroutines and every caller observes the same function value.
package binding

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrUnresolved is carried by the panic raised when a routine cannot be
// resolved. There is nothing sensible to fall back to at that point.
var ErrUnresolved = errors.New("binding: unresolved routine")

// Resolver finds a routine by name.
type Resolver interface {
	Lookup(name string) (any, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (any, error)

// Lookup implements Resolver.
func (f ResolverFunc) Lookup(name string) (any, error) {
	return f(name)
}

// Table resolves names from a fixed map.
type Table map[string]any

// Lookup implements Resolver.
func (t Table) Lookup(name string) (any, error) {
	fn, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s not in table", ErrUnresolved, name)
	}
	return fn, nil
}

// Chain tries each resolver in order and returns the first hit, mirroring a
// library search order.
type Chain []Resolver

// Lookup implements Resolver.
func (c Chain) Lookup(name string) (any, error) {
	var errs []error
	for _, r := range c {
		fn, err := r.Lookup(name)
		if err == nil {
			return fn, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s: empty search order", ErrUnresolved, name)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUnresolved, name, errors.Join(errs...))
}

// UnresolvedError is the panic value of a failed resolution.
type UnresolvedError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("binding %s: %v", e.Name, e.Err)
}

// Unwrap exposes the resolver error.
func (e *UnresolvedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnresolved) match.
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}

// Slot holds the lazily resolved implementation of one routine.
type Slot[F any] struct {
	name     string
	resolver Resolver
	counter  *atomic.Int64

	once sync.Once
	fn   F
	err  error
	done atomic.Bool
}

// NewSlot creates an unresolved slot.
func NewSlot[F any](name string, r Resolver) *Slot[F] {
	return &Slot[F]{name: name, resolver: r}
}

// Name returns the routine name.
func (s *Slot[F]) Name() string {
	return s.name
}

// Resolved reports whether resolution has completed, successfully or not.
func (s *Slot[F]) Resolved() bool {
	return s.done.Load()
}

// Resolve performs the lookup once and returns its outcome.
func (s *Slot[F]) Resolve() error {
	s.once.Do(func() {
		if s.counter != nil {
			s.counter.Add(1)
		}
		defer s.done.Store(true)

		raw, err := s.resolver.Lookup(s.name)
		if err != nil {
			s.err = err
			return
		}
		fn, ok := raw.(F)
		if !ok {
			s.err = fmt.Errorf("%s resolved to %T, want %T", s.name, raw, s.fn)
			return
		}
		s.fn = fn
	})
	return s.err
}

// Func returns the implementation, resolving it on first use. A failed
// resolution panics with an *UnresolvedError.
func (s *Slot[F]) Func() F {
	if err := s.Resolve(); err != nil {
		panic(&UnresolvedError{Name: s.name, Err: err})
	}
	return s.fn
}

// resolvable is the type-erased view a Set keeps of its slots.
type resolvable interface {
	Name() string
	Resolve() error
	Resolved() bool
	attach(counter *atomic.Int64)
}

func (s *Slot[F]) attach(counter *atomic.Int64) {
	s.counter = counter
}

// Set groups the slots of one dispatcher.
type Set struct {
	resolver    Resolver
	slots       []resolvable
	byName      map[string]resolvable
	resolutions atomic.Int64
}

// NewSet creates an empty set whose slots resolve through r.
func NewSet(r Resolver) *Set {
	return &Set{resolver: r, byName: make(map[string]resolvable)}
}

// Add creates a slot for name in set. Adding the same name twice panics;
// it is a wiring mistake.
func Add[F any](set *Set, name string) *Slot[F] {
	if _, dup := set.byName[name]; dup {
		panic(fmt.Sprintf("binding: duplicate slot %q", name))
	}
	s := NewSlot[F](name, set.resolver)
	s.attach(&set.resolutions)
	set.slots = append(set.slots, s)
	set.byName[name] = s
	return s
}

// ResolveAll resolves every slot that is not resolved yet. It is idempotent
// and returns the joined errors of failed slots.
func (s *Set) ResolveAll() error {
	var errs []error
	for _, slot := range s.slots {
		if err := slot.Resolve(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", slot.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names lists slots in registration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.slots))
	for i, slot := range s.slots {
		names[i] = slot.Name()
	}
	return names
}

// Resolved counts slots whose resolution has completed.
func (s *Set) Resolved() int {
	n := 0
	for _, slot := range s.slots {
		if slot.Resolved() {
			n++
		}
	}
	return n
}

// Resolutions counts lookups performed so far. It never exceeds the
// number of slots.
func (s *Set) Resolutions() int64 {
	return s.resolutions.Load()
}
