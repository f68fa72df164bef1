package server

import "sync/atomic"

// ConnCounter is the process-wide live-connection count, shared by the TCP
// supervisor and the WebSocket gateway and read by the operator console.
// The raw value is never exposed for unguarded mutation.
type ConnCounter struct {
	n atomic.Int64
}

// Inc records a connect and returns the new count.
func (c *ConnCounter) Inc() int64 {
	return c.n.Add(1)
}

// Dec records a disconnect and returns the new count.
func (c *ConnCounter) Dec() int64 {
	return c.n.Add(-1)
}

// Value returns the current live-connection count.
func (c *ConnCounter) Value() int64 {
	return c.n.Load()
}
