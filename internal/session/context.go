// Package session tracks the recording session the bridge is running.
package session

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/hlabridge/pkg/core"
)

// Context holds the active session. The zero value is inactive.
type Context struct {
	mu      sync.RWMutex
	session core.Session
	active  bool
}

// NewContext creates an inactive Context.
func NewContext() *Context {
	return &Context{}
}

// Get returns the active session.
func (c *Context) Get() (core.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.active
}

// Set makes s the active session.
func (c *Context) Set(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.active = true
}

// End stamps the end time on the active session and deactivates it.
func (c *Context) End(s core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.active = false
}

// LogAttrs describes the active session for log records.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.active {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("execution", c.session.Execution),
		slog.String("federate", c.session.Federate),
	}
	if c.session.ID != 0 {
		attrs = append(attrs, slog.Uint64("sessionId", uint64(c.session.ID)))
	}
	return attrs
}
