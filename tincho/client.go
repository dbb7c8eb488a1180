package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 64
	handshakeWait  = 10 * time.Second
)

var errConnClosed = errors.New("connection closed")

// conn is one websocket connection to a room. Reading starts with Run so
// the caller can build the frame handler after the handshake.
type conn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	ran    atomic.Bool

	mu  sync.Mutex
	err error
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Run starts the read and write loops. handle receives every inbound text
// frame in order; its error is informational.
func (c *conn) Run(handle func([]byte) error) {
	if c.ran.Swap(true) {
		return
	}
	go c.writeLoop()
	go c.readLoop(handle)
}

func (c *conn) readLoop(handle func([]byte) error) {
	c.ws.SetReadLimit(1 << 20)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.close(err)
			return
		}
		// any traffic proves the peer is alive
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if err := handle(payload); err != nil {
			log.Debug().Err(err).Msg("[ws] frame not handled")
		}
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close(fmt.Errorf("write: %w", err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(fmt.Errorf("ping: %w", err))
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues one request. When the buffer is full the oldest pending
// frame is dropped.
func (c *conn) Send(req protocol.Request) error {
	if c.closed.Load() {
		return errConnClosed
	}
	msg, err := req.Marshal()
	if err != nil {
		return err
	}
	select {
	case c.send <- msg:
	default:
		select {
		case <-c.send:
			log.Warn().Msg("[ws] send buffer full, dropped oldest frame")
		default:
		}
		select {
		case c.send <- msg:
		case <-c.done:
			return errConnClosed
		}
	}
	return nil
}

// Done is closed when the connection ends for any reason.
func (c *conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended; nil for a clean close.
func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *conn) Close() error {
	c.close(nil)
	return nil
}

func (c *conn) close(err error) {
	if c.closed.Swap(true) {
		return
	}
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	close(c.done)
	if !c.ran.Load() {
		_ = c.ws.Close()
	}
	if err != nil {
		log.Warn().Err(err).Msg("[ws] connection lost")
	} else {
		log.Debug().Msg("[ws] connection closed")
	}
}

// dialer opens room connections on /join.
type dialer struct {
	server string
	tls    bool
	ws     *websocket.Dialer
}

func newDialer(server string, tls bool) *dialer {
	return &dialer{
		server: server,
		tls:    tls,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeWait,
		},
	}
}

func (d *dialer) joinURL(req session.JoinRequest) string {
	scheme := "ws"
	if d.tls {
		scheme = "wss"
	}
	q := url.Values{}
	q.Set("room", req.Room)
	q.Set("player", req.Player)
	if req.Password != "" {
		q.Set("password", req.Password)
	}
	u := url.URL{Scheme: scheme, Host: d.server, Path: "/join", RawQuery: q.Encode()}
	return u.String()
}

// Dial implements session.Dialer. A resumed join replays the identity as the
// session cookie.
func (d *dialer) Dial(ctx context.Context, req session.JoinRequest, resume *session.Identity) (session.Conn, string, error) {
	header := http.Header{}
	if resume != nil {
		header.Set("Cookie", (&http.Cookie{Name: session.CookieName, Value: resume.String()}).String())
	}
	ws, resp, err := d.ws.DialContext(ctx, d.joinURL(req), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, "", fmt.Errorf("%w: %s", session.ErrRejected, resp.Status)
		}
		return nil, "", fmt.Errorf("dial %s: %w", d.server, err)
	}
	value, cleared := sessionCookie(resp)
	if cleared {
		_ = ws.Close()
		return nil, "", fmt.Errorf("%w: server cleared the session", session.ErrRejected)
	}
	log.Info().Str("room", req.Room).Str("player", req.Player).Bool("resume", resume != nil).Msg("[ws] connected")
	return newConn(ws), value, nil
}

// sessionCookie extracts the session value from the handshake response. An
// empty or already expired cookie is the server deleting the session.
func sessionCookie(resp *http.Response) (value string, cleared bool) {
	if resp == nil {
		return "", false
	}
	for _, ck := range resp.Cookies() {
		if ck.Name != session.CookieName {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now())) {
			return "", true
		}
		return ck.Value, false
	}
	return "", false
}
