package loom

import (
	"sync"
)

var (
	globalMu  sync.RWMutex
	globalCtx *Context
)

// Global returns the process-wide default context, creating it on first
// use. Intended for small programs and tests; larger applications should
// build explicit contexts.
func Global() *Context {
	globalMu.RLock()
	c := globalCtx
	globalMu.RUnlock()
	if c != nil {
		return c
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCtx == nil {
		globalCtx = NewContext("global")
	}
	return globalCtx
}

// InitGlobal replaces the default context with one built from the given
// options, returning the previous context if any.
func InitGlobal(opts ...ContextOption) *Context {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCtx = NewContext("global", opts...)
	return globalCtx
}

// ResetGlobal drops the default context so the next Global call creates a
// fresh one. The old context is not shut down; callers owning running
// components should Shutdown first.
func ResetGlobal() {
	globalMu.Lock()
	globalCtx = nil
	globalMu.Unlock()
}
