// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docsentry Contributors

package provider

import "sync"

// Lazy defers construction of an expensive resource (an SDK client, a
// loaded model handle) until first use, and guarantees the constructor
// runs at most once even under concurrent first requests. A failed init is
// sticky: every subsequent Get returns the same error, matching the fatal
// nature of configuration problems like a missing API key.
//
// There is no teardown; the wrapped primitives are stateless read-only
// inference clients that live for the process lifetime.
type Lazy[T any] struct {
	initFn func() (T, error)
	once   sync.Once
	value  T
	err    error
}

// NewLazy wraps init in a single-flight handle.
func NewLazy[T any](init func() (T, error)) *Lazy[T] {
	return &Lazy[T]{initFn: init}
}

// Get returns the initialized value, constructing it on first call.
func (l *Lazy[T]) Get() (T, error) {
	l.once.Do(func() {
		l.value, l.err = l.initFn()
		l.initFn = nil
	})
	return l.value, l.err
}
