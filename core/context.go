// Package core is the functional view of a simulated system: tasks whose
// behaviour is a chain of discrete, resumable segments that mutate a shared
// per-task context, route to one another via named outcomes, and exchange
// messages through ports. Execution is driven entirely by the timectrl
// calendar; a segment runs to completion at one simulated instant and the
// chain yields back to the calendar after every step.
package core

import (
	"errors"
	"fmt"
)

// ErrMissingKey is returned by TaskContext lookups when a key is absent and
// no default was supplied.
var ErrMissingKey = errors.New("missing context key")

// TaskContext is per-task scratch memory: a string-keyed map of values shared
// by the segments of one task's chain. Its lifetime spans one iteration of
// the chain; a looping chain gets a fresh context each time it restarts.
//
// There is deliberately no locking here. A task's context is only ever
// touched by that task's own segments, which the calendar executes strictly
// sequentially.
type TaskContext struct {
	values map[string]any
}

// NewTaskContext returns an empty context.
func NewTaskContext() *TaskContext {
	return &TaskContext{values: make(map[string]any)}
}

// Put stores a value, overwriting any previous value for the key.
func (c *TaskContext) Put(key string, value any) {
	c.values[key] = value
}

// Get returns the value for key, or ErrMissingKey.
func (c *TaskContext) Get(key string) (any, error) {
	v, ok := c.values[key]
	if !ok {
		return nil, fmt.Errorf("context key %q: %w", key, ErrMissingKey)
	}
	return v, nil
}

// GetDefault returns the value for key, or def when absent.
func (c *TaskContext) GetDefault(key string, def any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (c *TaskContext) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Delete removes a key; absent keys are ignored.
func (c *TaskContext) Delete(key string) {
	delete(c.values, key)
}

// GetFloat returns the value for key coerced to float64. Integer values are
// widened; anything else is a type error.
func (c *TaskContext) GetFloat(key string) (float64, error) {
	v, err := c.Get(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("context key %q: value %T is not numeric", key, v)
	}
}

// GetMessage returns the value for key as a Message.
func (c *TaskContext) GetMessage(key string) (Message, error) {
	v, err := c.Get(key)
	if err != nil {
		return Message{}, err
	}
	m, ok := v.(Message)
	if !ok {
		return Message{}, fmt.Errorf("context key %q: value %T is not a message", key, v)
	}
	return m, nil
}
