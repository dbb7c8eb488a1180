// Package intent turns hand-card clicks into complete outbound requests
// according to the active action mode.
package intent

import (
	"errors"
	"fmt"

	"github.com/gosuda/tincho-client/tincho/protocol"
)

type Mode string

const (
	ModeDiscard    Mode = "discard"
	ModeDiscardTwo Mode = "discard_two"
	ModeSwap       Mode = "swap_card"
	ModePeekOwn    Mode = "peek_own"
	ModePeekOther  Mode = "peek_carta_ajena"
)

var (
	ErrNotOwnCard  = errors.New("card does not belong to the local player")
	ErrOwnCard     = errors.New("card belongs to the local player")
	ErrUnknownMode = errors.New("unknown action mode")
)

// Pick is one selected hand card.
type Pick struct {
	Player   string `json:"player"`
	Position int    `json:"position"`
}

// Tracker holds the active mode and the buffer armed by it. It is not safe
// for concurrent use; the owner serializes access.
type Tracker struct {
	local string
	mode  Mode

	swap       *Pick
	discardTwo *int
}

func NewTracker(local string) *Tracker {
	return &Tracker{local: local, mode: ModeDiscard}
}

func (t *Tracker) Mode() Mode { return t.mode }

// SetMode switches the interpretation of the next click. Both buffers are
// cleared: only the buffer of the new mode may be armed and it starts empty.
func (t *Tracker) SetMode(m Mode) error {
	switch m {
	case ModeDiscard, ModeDiscardTwo, ModeSwap, ModePeekOwn, ModePeekOther:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
	t.mode = m
	t.swap = nil
	t.discardTwo = nil
	return nil
}

// Reset returns to plain discard with empty buffers.
func (t *Tracker) Reset() {
	t.mode = ModeDiscard
	t.swap = nil
	t.discardTwo = nil
}

// SwapBuffer returns the pending swap pick, if any.
func (t *Tracker) SwapBuffer() (Pick, bool) {
	if t.swap == nil {
		return Pick{}, false
	}
	return *t.swap, true
}

// DiscardTwoBuffer returns the pending first position, if any.
func (t *Tracker) DiscardTwoBuffer() (int, bool) {
	if t.discardTwo == nil {
		return 0, false
	}
	return *t.discardTwo, true
}

// Click interprets a click on player's card at pos. It returns the request to
// send once the gesture is complete, nil while it is still accumulating, or
// an error when the click is rejected. A rejection never mutates state.
// After a request is produced the mode resets to plain discard.
func (t *Tracker) Click(player string, pos int) (*protocol.Request, error) {
	own := player == t.local
	var req protocol.Request

	switch t.mode {
	case ModeDiscard:
		if !own {
			return nil, ErrNotOwnCard
		}
		req = protocol.NewDiscard(pos)

	case ModeDiscardTwo:
		if !own {
			return nil, ErrNotOwnCard
		}
		if t.discardTwo == nil {
			p := pos
			t.discardTwo = &p
			return nil, nil
		}
		req = protocol.NewDiscardTwo(*t.discardTwo, pos)

	case ModeSwap:
		if t.swap == nil {
			t.swap = &Pick{Player: player, Position: pos}
			return nil, nil
		}
		req = protocol.NewSwapCards(t.swap.Player, t.swap.Position, player, pos)

	case ModePeekOwn:
		if !own {
			return nil, ErrNotOwnCard
		}
		req = protocol.NewPeekOwn(pos)

	case ModePeekOther:
		if own {
			return nil, ErrOwnCard
		}
		req = protocol.NewPeekCartaAjena(player, pos)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, t.mode)
	}

	t.Reset()
	return &req, nil
}
