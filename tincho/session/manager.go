package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const identityKey = "session-identity"

// JoinRequest names the room and player to connect as. Password is only
// sent on a fresh join.
type JoinRequest struct {
	Room     string
	Player   string
	Password string
}

// Conn is whatever the Dialer hands back; the manager only passes it on.
type Conn interface {
	Close() error
}

// Dialer opens a game connection. resume is nil for a fresh join. The
// returned cookie is the session value the server set during the
// handshake, or "" if it set none. A server that clears the cookie must be
// reported as ErrRejected.
type Dialer interface {
	Dial(ctx context.Context, req JoinRequest, resume *Identity) (Conn, string, error)
}

// Manager owns the persisted resumption record and the identity of the live
// connection.
type Manager struct {
	store  Store
	dialer Dialer

	mu      sync.Mutex
	current *Identity
}

func NewManager(store Store, dialer Dialer) *Manager {
	return &Manager{store: store, dialer: dialer}
}

// Stored returns the persisted identity without connecting.
func (m *Manager) Stored() (Identity, error) {
	raw, err := m.store.Get(identityKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrNoIdentity
		}
		return Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return ParseIdentity(raw)
}

// Resume reconnects with the persisted identity without a password. A
// malformed record is destroyed. On a transport failure the record is kept
// for the next attempt; on rejection it is destroyed.
func (m *Manager) Resume(ctx context.Context) (Conn, error) {
	id, err := m.Stored()
	if errors.Is(err, ErrMalformedIdentity) {
		log.Warn().Err(err).Msg("[session] dropping persisted identity")
		if derr := m.store.Delete(identityKey); derr != nil {
			return nil, errors.Join(err, derr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("room", id.RoomID).Str("player", id.PlayerID).Msg("[session] resuming")
	conn, cookie, err := m.dialer.Dial(ctx, JoinRequest{Room: id.RoomID, Player: id.PlayerID}, &id)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			m.Rejected()
		} else {
			m.Lost()
		}
		return nil, fmt.Errorf("resume %s: %w", id.RoomID, err)
	}
	if cookie != "" {
		if fresh, perr := ParseIdentity(cookie); perr == nil {
			id = fresh
		}
	}
	if err := m.Confirm(id); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Join connects to a room as a new player.
func (m *Manager) Join(ctx context.Context, req JoinRequest) (Conn, error) {
	if req.Room == "" || req.Player == "" {
		return nil, errors.New("join: room and player are required")
	}
	conn, cookie, err := m.dialer.Dial(ctx, req, nil)
	if err != nil {
		m.Lost()
		return nil, fmt.Errorf("join %s: %w", req.Room, err)
	}
	id, perr := ParseIdentity(cookie)
	if perr != nil {
		// no resumption possible, but the connection itself is usable
		log.Warn().Err(perr).Str("room", req.Room).Msg("[session] server sent no usable session cookie")
		m.mu.Lock()
		m.current = &Identity{PlayerID: req.Player, RoomID: req.Room}
		m.mu.Unlock()
		return conn, nil
	}
	if err := m.Confirm(id); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Confirm stores id as the identity of the live connection and persists it.
func (m *Manager) Confirm(id Identity) error {
	if !id.Valid() {
		return fmt.Errorf("confirm: %w", ErrMalformedIdentity)
	}
	m.mu.Lock()
	m.current = &id
	m.mu.Unlock()
	if err := m.store.Set(identityKey, id.String()); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	return nil
}

// Lost clears the transient identity after a failure or close. The
// persisted record stays for the next attempt.
func (m *Manager) Lost() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Leave destroys both the transient and the persisted identity.
func (m *Manager) Leave() error {
	m.Lost()
	if err := m.store.Delete(identityKey); err != nil {
		return fmt.Errorf("forget identity: %w", err)
	}
	return nil
}

// Rejected is Leave for a token the server refused.
func (m *Manager) Rejected() {
	log.Warn().Msg("[session] resumption token rejected")
	if err := m.Leave(); err != nil {
		log.Error().Err(err).Msg("[session] forget identity")
	}
}

// Current returns the identity of the live connection, if any.
func (m *Manager) Current() (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Identity{}, false
	}
	return *m.current, true
}
