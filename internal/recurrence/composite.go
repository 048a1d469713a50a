package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// AllOf is the conjunction of its children: the next instant satisfying
// every child simultaneously. Computed as a fixed-point loop (see Next)
// rather than by intersecting per-child candidate sets, since the set of
// instants satisfying a single field constraint is unbounded.
type AllOf struct {
	children []Predicate
}

// NewAllOf builds an AllOf predicate over one or more children.
func NewAllOf(children ...Predicate) (AllOf, error) {
	if len(children) == 0 {
		return AllOf{}, ErrEmptyChildren
	}
	cp := make([]Predicate, len(children))
	copy(cp, children)
	return AllOf{children: cp}, nil
}

// Next resolves the conjunction as a fixed point: seed
// from the earliest strict candidate (or from `from` itself when not
// strict), then repeatedly push the instant through every child in order
// until a full pass leaves it unchanged.
func (p AllOf) Next(from time.Time, strict bool) time.Time {
	var t time.Time
	if strict {
		for i, c := range p.children {
			v := c.Next(from, true)
			if i == 0 || v.Before(t) {
				t = v
			}
		}
	} else {
		t = from
	}

	for {
		prev := t
		for _, c := range p.children {
			t = c.Next(t, false)
		}
		if t.Equal(prev) {
			break
		}
	}
	return t
}

func (p AllOf) String() string {
	parts := make([]string, len(p.children))
	for i, c := range p.children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " & ") + ")"
}

// FirstOf is the disjunction of its children: the earliest instant
// satisfying any one of them.
type FirstOf struct {
	children []Predicate
}

// NewFirstOf builds a FirstOf predicate over one or more children.
func NewFirstOf(children ...Predicate) (FirstOf, error) {
	if len(children) == 0 {
		return FirstOf{}, ErrEmptyChildren
	}
	cp := make([]Predicate, len(children))
	copy(cp, children)
	return FirstOf{children: cp}, nil
}

func (p FirstOf) Next(from time.Time, strict bool) time.Time {
	var result time.Time
	for i, c := range p.children {
		v := c.Next(from, strict)
		if i == 0 || v.Before(result) {
			result = v
		}
	}
	return result
}

func (p FirstOf) String() string {
	parts := make([]string, len(p.children))
	for i, c := range p.children {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " | ") + "]"
}

// HourMinute is sugar for AllOf(Hour(h), Minute(m)), kept as its own variant
// so it renders back to the compact "H:M" DSL form instead of the
// equivalent, noisier "(hH & mM)".
type HourMinute struct {
	hour, minute int
	inner        AllOf
}

// NewHourMinute builds an HourMinute predicate.
func NewHourMinute(hour, minute int) (HourMinute, error) {
	h, err := NewHour(hour)
	if err != nil {
		return HourMinute{}, err
	}
	m, err := NewMinute(minute)
	if err != nil {
		return HourMinute{}, err
	}
	inner, _ := NewAllOf(h, m) // always 2 children, cannot fail
	return HourMinute{hour: hour, minute: minute, inner: inner}, nil
}

func (p HourMinute) Next(from time.Time, strict bool) time.Time {
	return p.inner.Next(from, strict)
}

func (p HourMinute) String() string {
	return fmt.Sprintf("%d:%d", p.hour, p.minute)
}
