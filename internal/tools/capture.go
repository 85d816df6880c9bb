package tools

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// capture holds stdout and stderr buffers that share one byte budget.
// exec copies each stream on its own goroutine, so writes are serialized.
type capture struct {
	mu       sync.Mutex
	out      bytes.Buffer
	err      bytes.Buffer
	limit    int
	used     int
	overflow bool
	onLimit  context.CancelFunc
}

func newCapture(limit int, onLimit context.CancelFunc) *capture {
	return &capture{limit: limit, onLimit: onLimit}
}

func (c *capture) stdout() io.Writer { return streamWriter{c: c, buf: &c.out} }
func (c *capture) stderr() io.Writer { return streamWriter{c: c, buf: &c.err} }

func (c *capture) write(buf *bytes.Buffer, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overflow {
		return len(p), nil
	}
	remaining := c.limit - c.used
	if len(p) > remaining {
		buf.Write(p[:remaining])
		c.used = c.limit
		c.overflow = true
		if c.onLimit != nil {
			c.onLimit()
		}
		return len(p), nil
	}
	buf.Write(p)
	c.used += len(p)
	return len(p), nil
}

func (c *capture) overflowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overflow
}

func (c *capture) stdoutBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.out.Bytes())
}

func (c *capture) stderrBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.err.Bytes())
}

type streamWriter struct {
	c   *capture
	buf *bytes.Buffer
}

func (w streamWriter) Write(p []byte) (int, error) {
	return w.c.write(w.buf, p)
}
