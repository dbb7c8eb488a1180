// Package session keeps the identity needed to resume a game after the
// connection drops or the process restarts.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// CookieName is the cookie the server sets on the upgrade response.
const CookieName = "session_token"

const separator = "::"

var (
	ErrNoIdentity        = errors.New("no session identity")
	ErrMalformedIdentity = errors.New("malformed session identity")
	ErrRejected          = errors.New("session rejected by server")
)

// Identity is the local player, its room and the opaque resumption token.
type Identity struct {
	PlayerID string `json:"player"`
	RoomID   string `json:"room"`
	Token    string `json:"token"`
}

// String encodes the identity the way the server writes the cookie value.
func (id Identity) String() string {
	return id.PlayerID + separator + id.RoomID + separator + id.Token
}

func (id Identity) Valid() bool {
	return id.PlayerID != "" && id.RoomID != "" && id.Token != ""
}

// ParseIdentity decodes "player::room::token".
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return Identity{}, ErrNoIdentity
	}
	parts := strings.Split(s, separator)
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("%w: %d fields", ErrMalformedIdentity, len(parts))
	}
	id := Identity{PlayerID: parts[0], RoomID: parts[1], Token: parts[2]}
	if !id.Valid() {
		return Identity{}, fmt.Errorf("%w: empty field", ErrMalformedIdentity)
	}
	return id, nil
}
