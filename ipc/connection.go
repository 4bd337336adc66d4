package ipc

import (
	"io"
	"log/slog"
	"net"
	"sync"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Transport moves whole envelopes. Streams need framing; websocket messages
// are already framed.
type Transport interface {
	ReadEnvelope() (Envelope, error)
	WriteEnvelope(env Envelope) error
	Close() error
}

// streamTransport frames envelopes with a length prefix over a byte stream.
type streamTransport struct {
	conn io.ReadWriteCloser
}

func (s streamTransport) ReadEnvelope() (Envelope, error)  { return ReadEnvelope(s.conn) }
func (s streamTransport) WriteEnvelope(env Envelope) error { return WriteEnvelope(s.conn, env) }
func (s streamTransport) Close() error                     { return s.conn.Close() }

// Connection represents a single simulator process talking to the bridge.
// Each team gets its own connection, identified after the hello handshake.
type Connection struct {
	t        Transport
	handlers map[string]Handler
	log      *slog.Logger
	writeMu  sync.Mutex
	Team     string
}

func NewConnection(conn net.Conn, handlers map[string]Handler) *Connection {
	return NewTransportConnection(streamTransport{conn: conn}, handlers)
}

func NewTransportConnection(t Transport, handlers map[string]Handler) *Connection {
	if handlers == nil {
		handlers = make(map[string]Handler)
	}
	return &Connection{
		t:        t,
		handlers: handlers,
		log:      slog.Default(),
	}
}

// SetLogger replaces the default logger.
func (c *Connection) SetLogger(log *slog.Logger) { c.log = log }

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.write(env)
}

// Receive blocks for the next envelope. It is for the simulator side of a
// connection, which drives the exchange instead of running ReadLoop.
func (c *Connection) Receive() (Envelope, error) {
	return c.t.ReadEnvelope()
}

func (c *Connection) Close() error { return c.t.Close() }

func (c *Connection) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.t.WriteEnvelope(env)
}

// ReadLoop blocks until the connection closes or errors. It owns the conn lifetime
// so callers don't need to track cleanup.
func (c *Connection) ReadLoop() {
	defer c.t.Close()

	for {
		env, err := c.t.ReadEnvelope()
		if err != nil {
			c.log.Info("connection read ended", "team", c.Team, "error", err)
			return
		}

		handler, ok := c.handlers[env.Type]
		if !ok {
			c.log.Warn("no handler for message type", "type", env.Type)
			continue
		}

		resp, err := handler(env)
		if err != nil {
			c.log.Error("handler error", "type", env.Type, "error", err)
			continue
		}

		if resp != nil {
			if err := c.write(*resp); err != nil {
				c.log.Error("failed to send response", "type", resp.Type, "error", err)
				return
			}
			c.log.Debug("sent response", "type", resp.Type, "team", c.Team)
		}
	}
}
