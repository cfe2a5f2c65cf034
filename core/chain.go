package core

import (
	"errors"
	"fmt"
)

// ErrMalformedChain is returned by Validate when a chain's routing table or
// key manifests do not hold together. This always indicates a model authored
// incorrectly, so it surfaces at construction time, never mid-simulation.
var ErrMalformedChain = errors.New("malformed behaviour chain")

type routeKey struct {
	segment string
	outcome Outcome
}

// BehaviorChain is an ordered collection of segments plus a routing table
// mapping (segment, outcome) to the next segment. Append wires the default
// linear flow (each segment's success leads to the next); Route adds or
// overrides edges for failure paths and graph-shaped flows. With looping
// enabled, the terminal segment's success outcome restarts the chain from
// the first segment with a fresh context.
type BehaviorChain struct {
	segments []Segment
	byName   map[string]Segment
	routes   map[routeKey]string
	looping  bool
}

// NewBehaviorChain returns an empty chain.
func NewBehaviorChain() *BehaviorChain {
	return &BehaviorChain{
		byName: make(map[string]Segment),
		routes: make(map[routeKey]string),
	}
}

// Append adds a segment, routing the previous segment's success outcome to
// it. Duplicate names are rejected.
func (c *BehaviorChain) Append(s Segment) error {
	name := s.Name()
	if name == "" {
		return fmt.Errorf("%w: segment with empty name", ErrMalformedChain)
	}
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("%w: duplicate segment %q", ErrMalformedChain, name)
	}
	if len(c.segments) > 0 {
		prev := c.segments[len(c.segments)-1].Name()
		c.routes[routeKey{prev, OutcomeSuccess}] = name
	}
	c.segments = append(c.segments, s)
	c.byName[name] = s
	return nil
}

// MustAppend is Append for static chain construction, panicking on the
// configuration errors Append reports.
func (c *BehaviorChain) MustAppend(s Segment) {
	if err := c.Append(s); err != nil {
		panic(err)
	}
}

// Route maps (from, outcome) to the segment named to. Both segments must
// already be appended.
func (c *BehaviorChain) Route(from string, outcome Outcome, to string) error {
	if _, ok := c.byName[from]; !ok {
		return fmt.Errorf("%w: route from unknown segment %q", ErrMalformedChain, from)
	}
	if _, ok := c.byName[to]; !ok {
		return fmt.Errorf("%w: route to unknown segment %q", ErrMalformedChain, to)
	}
	c.routes[routeKey{from, outcome}] = to
	return nil
}

// SetLooping controls whether the terminal segment's success outcome routes
// back to the first segment.
func (c *BehaviorChain) SetLooping(looping bool) { c.looping = looping }

// Looping reports the looping flag.
func (c *BehaviorChain) Looping() bool { return c.looping }

// Len returns the number of segments.
func (c *BehaviorChain) Len() int { return len(c.segments) }

func (c *BehaviorChain) first() Segment {
	if len(c.segments) == 0 {
		return nil
	}
	return c.segments[0]
}

// next resolves the routing table for (from, outcome). The second return is
// false for the terminal case: the last segment's unrouted success.
func (c *BehaviorChain) next(from Segment, outcome Outcome) (Segment, bool) {
	if to, ok := c.routes[routeKey{from.Name(), outcome}]; ok {
		return c.byName[to], true
	}
	return nil, false
}

func (c *BehaviorChain) isTerminal(s Segment) bool {
	return len(c.segments) > 0 && c.segments[len(c.segments)-1] == s
}

// declaredOutcomes returns the outcomes a segment can produce, defaulting to
// success only.
func declaredOutcomes(s Segment) []Outcome {
	if os, ok := s.(OutcomeSet); ok {
		return os.Outcomes()
	}
	return []Outcome{OutcomeSuccess}
}

// Validate checks the chain is well formed:
//
//   - it has at least one segment;
//   - every declared outcome of every segment resolves to a segment, except
//     the terminal segment's success outcome, which either loops or stops;
//   - every context key a segment declares it reads is written by some
//     segment of the chain or provided by the engine. The check is
//     order-insensitive because looping makes segment order circular.
//
// An invalid chain is a configuration error; Task.Execute refuses to start
// one.
func (c *BehaviorChain) Validate() error {
	if len(c.segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrMalformedChain)
	}

	for _, s := range c.segments {
		for _, o := range declaredOutcomes(s) {
			if _, ok := c.routes[routeKey{s.Name(), o}]; ok {
				continue
			}
			if c.isTerminal(s) && o == OutcomeSuccess {
				continue
			}
			return fmt.Errorf("%w: segment %q outcome %q has no route", ErrMalformedChain, s.Name(), o)
		}
	}

	written := make(map[string]bool)
	for _, s := range c.segments {
		if km, ok := s.(KeyManifest); ok {
			for _, k := range km.Writes() {
				written[k] = true
			}
		}
	}
	for _, s := range c.segments {
		km, ok := s.(KeyManifest)
		if !ok {
			continue
		}
		for _, k := range km.Reads() {
			if !written[k] {
				return fmt.Errorf("%w: segment %q reads key %q no segment writes", ErrMalformedChain, s.Name(), k)
			}
		}
	}
	return nil
}
