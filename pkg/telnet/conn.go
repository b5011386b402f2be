package telnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
)

// ErrNotConnected is returned when sending on a closed connection.
var ErrNotConnected = errors.New("not connected")

const sendQueueDepth = 256

// Conn is a live session. Received lines are delivered on Lines; the
// channel closes when the connection drops. Send queues bytes for a
// writer goroutine; SendNow writes synchronously, bypassing the queue.
type Conn struct {
	conn  net.Conn
	lines chan string
	queue chan []byte
	done  chan struct{}
	up    atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to a MUD server and starts the reader and writer loops.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("telnet: dialing %s: %w", addr, err)
	}
	c := &Conn{
		conn:  nc,
		lines: make(chan string, 64),
		queue: make(chan []byte, sendQueueDepth),
		done:  make(chan struct{}),
	}
	c.up.Store(true)
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// Lines returns the channel of received lines, closed on disconnect.
func (c *Conn) Lines() <-chan string { return c.lines }

// Connected reports whether the session is up.
func (c *Conn) Connected() bool { return c.up.Load() }

// Send queues data for delivery. A full queue drops the write rather
// than blocking the engine.
func (c *Conn) Send(data []byte) error {
	if !c.up.Load() {
		return ErrNotConnected
	}
	select {
	case c.queue <- data:
		return nil
	case <-c.done:
		return ErrNotConnected
	default:
		return fmt.Errorf("telnet: send queue full, dropped %d bytes", len(data))
	}
}

// SendNow writes data synchronously, bypassing the queue.
func (c *Conn) SendNow(data []byte) error {
	if !c.up.Load() {
		return ErrNotConnected
	}
	return c.write(data)
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.up.Store(false)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("telnet: write: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer func() {
		c.Close()
		close(c.lines)
	}()
	var filter Filter
	var pending []byte
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			text, replies := filter.Feed(buf[:n])
			if len(replies) > 0 {
				if werr := c.write(replies); werr != nil {
					log.Printf("TELNET: negotiation reply: %v", werr)
				}
			}
			pending = append(pending, text...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				c.lines <- string(pending[:i])
				pending = pending[i+1:]
			}
		}
		if err != nil {
			if len(pending) > 0 {
				c.lines <- string(pending)
			}
			return
		}
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case data := <-c.queue:
			if err := c.write(data); err != nil {
				log.Printf("TELNET: %v", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
