// Package lobby talks to the plain HTTP endpoints of the game server that
// exist outside a room connection.
package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Difficulties accepted by the server for bots.
var Difficulties = []string{"easy", "medium", "hard"}

var ErrBadDifficulty = errors.New("unknown bot difficulty")

type DeckOptions struct {
	Extended bool `json:"extended"`
	Chaos    bool `json:"chaos"`
}

// RoomConfig is the body of a room creation request.
type RoomConfig struct {
	Password   string      `json:"password"`
	MaxPlayers int         `json:"max_players"`
	Deck       DeckOptions `json:"deck"`
}

func (rc RoomConfig) Validate() error {
	if rc.MaxPlayers < 2 || rc.MaxPlayers > 10 {
		return fmt.Errorf("max players must be between 2 and 10, got %d", rc.MaxPlayers)
	}
	return nil
}

type RoomInfo struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
}

// StatusError is a non-2xx answer. Body is the server's text, trimmed.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lobby: status %d", e.Code)
	}
	return fmt.Sprintf("lobby: status %d: %s", e.Code, e.Body)
}

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the server at host:port.
func New(server string, tls bool) *Client {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	return &Client{
		base: &url.URL{Scheme: scheme, Host: server},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) url(path string, q url.Values) string {
	u := *c.base
	u.Path = path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lobby %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("lobby %s: read body: %w", req.URL.Path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// NewRoom creates a room and returns its id.
func (c *Client) NewRoom(ctx context.Context, rc RoomConfig) (string, error) {
	if err := rc.Validate(); err != nil {
		return "", err
	}
	body, err := json.Marshal(rc)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/new", nil), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	out, err := c.do(req)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return "", errors.New("lobby /new: empty room id")
	}
	log.Info().Str("room", id).Int("max_players", rc.MaxPlayers).Msg("[lobby] room created")
	return id, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/list", nil), nil)
	if err != nil {
		return nil, err
	}
	out, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var rooms []RoomInfo
	if err := json.Unmarshal(out, &rooms); err != nil {
		return nil, fmt.Errorf("lobby /list: decode: %w", err)
	}
	return rooms, nil
}

// AddBot asks the server to seat a bot of the given difficulty in room.
func (c *Client) AddBot(ctx context.Context, room, difficulty string) error {
	if room == "" {
		return errors.New("add bot: room is required")
	}
	known := false
	for _, d := range Difficulties {
		if d == difficulty {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrBadDifficulty, difficulty)
	}
	q := url.Values{}
	q.Set("room", room)
	q.Set("difficulty", difficulty)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/add-bot", q), nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return err
	}
	log.Info().Str("room", room).Str("difficulty", difficulty).Msg("[lobby] bot added")
	return nil
}
