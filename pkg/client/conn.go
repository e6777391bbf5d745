package client

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/crystal-mush/gofugue/pkg/telnet"
	"github.com/crystal-mush/gofugue/pkg/world"
)

// worldConn is the session's view of one server connection. The real
// implementation is Conn; tests substitute fakes.
type worldConn interface {
	Send(text string) error
	SendRaw(p []byte) error
	Close() error
}

// netChunk is one decoded unit of network input delivered to the
// session goroutine, or a terminal error when Err is set.
type netChunk struct {
	World string
	Chunk telnet.Chunk
	Err   error
}

// Conn is a live telnet connection to one world. Reads happen on a
// dedicated goroutine that decodes the stream and posts chunks to the
// session channel; writes happen from the session goroutine.
type Conn struct {
	world world.Info
	nc    net.Conn
	dec   *telnet.Decoder
}

const dialTimeout = 10 * time.Second

// Dial connects to a world, optionally over TLS.
func Dial(w world.Info) (*Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	nc, err := d.Dial("tcp", w.Addr())
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", w.Addr(), err)
	}
	if w.TLS {
		tc := tls.Client(nc, &tls.Config{ServerName: w.Host})
		if err := tc.Handshake(); err != nil {
			nc.Close()
			return nil, fmt.Errorf("client: tls handshake %s: %w", w.Addr(), err)
		}
		nc = tc
	}
	return &Conn{world: w, nc: nc, dec: telnet.NewDecoder()}, nil
}

// readLoop reads and decodes the stream until the connection drops,
// posting every chunk (and finally the read error) to ch. Negotiation
// replies produced by the decoder are written back immediately.
func (c *Conn) readLoop(ch chan<- netChunk) {
	buf := make([]byte, 4096)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			chunks := c.dec.Feed(buf[:n])
			if replies := c.dec.TakeReplies(); len(replies) > 0 {
				c.nc.Write(replies)
			}
			for _, chunk := range chunks {
				ch <- netChunk{World: c.world.Name, Chunk: chunk}
			}
		}
		if err != nil {
			// A partial line still in the decoder is flushed as a prompt
			// so the user sees everything received before the drop.
			if part := c.dec.Partial(); part != "" {
				ch <- netChunk{World: c.world.Name, Chunk: telnet.Chunk{Kind: telnet.ChunkPrompt, Line: part}}
			}
			ch <- netChunk{World: c.world.Name, Err: err}
			return
		}
	}
}

// Send writes one line to the server, escaping IAC bytes and appending
// CRLF.
func (c *Conn) Send(text string) error {
	p := []byte(text)
	if bytes.IndexByte(p, telnet.IAC) >= 0 {
		p = bytes.ReplaceAll(p, []byte{telnet.IAC}, []byte{telnet.IAC, telnet.IAC})
	}
	p = append(p, '\r', '\n')
	return c.SendRaw(p)
}

// SendRaw writes bytes as-is, for pre-encoded GMCP/MSDP requests.
func (c *Conn) SendRaw(p []byte) error {
	if _, err := c.nc.Write(p); err != nil {
		return fmt.Errorf("client: write %s: %w", c.world.Name, err)
	}
	return nil
}

// Close closes the underlying connection, which also ends readLoop.
func (c *Conn) Close() error {
	return c.nc.Close()
}
