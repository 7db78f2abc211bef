// Package modifier implements the per-car effect stack.
//
// Base values are never written by an effect. The effective value of a field is
// recomputed from the base on every Resolve:
//
//	value = base * (1 + sum(add)) * prod(mul)
//
// Entries count down inside the tick loop (Advance) and vanish when their time is up,
// so removing an entry restores the previous value exactly.
package modifier

import (
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/racesim/pkg/model"
)

// Entry is a single active effect.
type Entry struct {
	Key       string                      // unique within a stack, e.g. "mistake", "powerup.nitro"
	Source    string                      // id of the car (or controller) that caused the effect
	Mul       map[model.StatField]float64 // multiplicative factors
	Add       map[model.StatField]float64 // relative bonus, 0.1 means +10% of base
	Remaining float64                     // seconds left
	Duration  float64                     // 0 means permanent until removed
	Decay     bool                        // contribution tapers linearly with Remaining/Duration
	Charges   int                         // hit counter for absorbing effects
}

// Permanent reports whether the entry ignores Advance
func (e *Entry) Permanent() bool {
	return e.Duration <= 0
}

// strength is the share of the contribution currently applied
func (e *Entry) strength() float64 {
	if !e.Decay || e.Permanent() {
		return 1
	}
	return math.Max(0, math.Min(1, e.Remaining/e.Duration))
}

func (e *Entry) clone() Entry {
	ret := *e
	if e.Mul != nil {
		ret.Mul = make(map[model.StatField]float64, len(e.Mul))
		for k, v := range e.Mul {
			ret.Mul[k] = v
		}
	}
	if e.Add != nil {
		ret.Add = make(map[model.StatField]float64, len(e.Add))
		for k, v := range e.Add {
			ret.Add[k] = v
		}
	}
	return ret
}

type Stack struct {
	entries map[string]*Entry
}

func NewStack() *Stack {
	return &Stack{entries: make(map[string]*Entry)}
}

// Apply installs e. An existing entry with the same key is replaced.
func (s *Stack) Apply(e Entry) {
	if e.Remaining <= 0 {
		e.Remaining = e.Duration
	}
	c := e.clone()
	s.entries[e.Key] = &c
}

// Extend adds dt seconds to an existing entry, capped at maxRemaining.
// The taper of decaying entries restarts from the new remaining time.
// Returns false if no entry with that key exists.
func (s *Stack) Extend(key string, dt, maxRemaining float64) bool {
	e, ok := s.entries[key]
	if !ok || e.Permanent() {
		return false
	}
	e.Remaining = math.Min(e.Remaining+dt, maxRemaining)
	if e.Remaining > e.Duration || e.Decay {
		e.Duration = e.Remaining
	}
	return true
}

// Refresh sets the remaining time of an entry to at least d.
func (s *Stack) Refresh(key string, d float64) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.Remaining < d {
		e.Remaining = d
	}
	return true
}

func (s *Stack) Remove(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

func (s *Stack) Has(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// Get returns a copy of the entry
func (s *Stack) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

func (s *Stack) Len() int {
	return len(s.entries)
}

// Clear drops every entry
func (s *Stack) Clear() {
	clear(s.entries)
}

// ConsumeCharge uses one charge of the entry. The entry is removed when the last
// charge is gone. Returns true if a charge was available.
func (s *Stack) ConsumeCharge(key string) (absorbed bool, left int) {
	e, ok := s.entries[key]
	if !ok || e.Charges <= 0 {
		return false, 0
	}
	e.Charges--
	if e.Charges == 0 {
		delete(s.entries, key)
	}
	return true, e.Charges
}

// Advance counts down all timed entries and removes the expired ones.
// The removed entries are returned in key order.
func (s *Stack) Advance(dt float64) []Entry {
	var expired []Entry
	for _, k := range s.keys() {
		e := s.entries[k]
		if e.Permanent() {
			continue
		}
		e.Remaining -= dt
		if e.Remaining <= 0 {
			expired = append(expired, *e)
			delete(s.entries, k)
		}
	}
	return expired
}

// Resolve computes the effective values for base.
func (s *Stack) Resolve(base model.Stats) model.Stats {
	if len(s.entries) == 0 {
		return base
	}
	var add model.Stats
	mul := model.Stats{}
	for i := range mul {
		mul[i] = 1
	}
	for _, k := range s.keys() {
		e := s.entries[k]
		str := e.strength()
		for f, v := range e.Add {
			add[f] += v * str
		}
		for f, v := range e.Mul {
			mul[f] *= 1 + (v-1)*str
		}
	}
	ret := base
	for i := range ret {
		ret[i] = math.Max(0, base[i]*(1+add[i])*mul[i])
	}
	return ret
}

// Entries returns copies of all entries in key order
func (s *Stack) Entries() []Entry {
	return lo.Map(s.keys(), func(k string, _ int) Entry {
		return s.entries[k].clone()
	})
}

func (s *Stack) keys() []string {
	keys := lo.Keys(s.entries)
	slices.Sort(keys)
	return keys
}
