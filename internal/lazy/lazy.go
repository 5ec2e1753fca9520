// Package lazy provides explicitly initialized client handles that fail fast
// once their initializer has failed.
package lazy

import (
	"fmt"
	"sync"
)

// State is the lifecycle of a lazily initialized value
type State int

const (
	Uninitialized State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Value initializes a T on first use. A failed initialization is sticky:
// every later Get returns the same error without retrying.
type Value[T any] struct {
	name string
	init func() (T, error)

	mu    sync.Mutex
	state State
	value T
	err   error
}

// New wraps init under the given client name.
func New[T any](name string, init func() (T, error)) *Value[T] {
	return &Value[T]{name: name, init: init}
}

// ReadyValue wraps an already constructed value.
func ReadyValue[T any](name string, v T) *Value[T] {
	return &Value[T]{name: name, state: Ready, value: v}
}

// Get returns the value, initializing it on the first call.
func (v *Value[T]) Get() (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case Ready:
		return v.value, nil
	case Failed:
		var zero T
		return zero, v.err
	}

	value, err := v.init()
	if err != nil {
		v.state = Failed
		v.err = fmt.Errorf("%s client unavailable: %w", v.name, err)
		var zero T
		return zero, v.err
	}
	v.state = Ready
	v.value = value
	return value, nil
}

// State reports the current lifecycle state without initializing.
func (v *Value[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Name returns the client name used in errors.
func (v *Value[T]) Name() string {
	return v.name
}
