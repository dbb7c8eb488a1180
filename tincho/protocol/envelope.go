// Package protocol holds the wire shapes exchanged with the game server.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the tagged message shape used in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a raw transport frame. Only the outer shape is
// validated here; payloads are decoded by whoever handles Type.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return nil
}

// ActionType names an outbound request.
type ActionType string

const (
	ActionStart          ActionType = "start"
	ActionFirstPeek      ActionType = "first_peek"
	ActionDraw           ActionType = "draw"
	ActionCut            ActionType = "cut"
	ActionDiscard        ActionType = "discard"
	ActionSwapCards      ActionType = "effect_swap_card"
	ActionPeekOwnCard    ActionType = "effect_peek_own"
	ActionPeekCartaAjena ActionType = "effect_peek_carta_ajena"
)

// Request is an outbound envelope before encoding.
type Request struct {
	Type ActionType `json:"type"`
	Data any        `json:"data"`
}

func (r Request) Marshal() ([]byte, error) {
	data := r.Data
	if data == nil {
		data = struct{}{}
	}
	return json.Marshal(Request{Type: r.Type, Data: data})
}

type FirstPeekData struct {
	Positions []int `json:"positions"`
}

type DrawData struct {
	Source DrawSource `json:"source"`
}

type CutData struct {
	WithCount bool `json:"withCount"`
	Declared  int  `json:"declared"`
}

// DiscardData position -1 refers to the drawn card that has not been stored.
type DiscardData struct {
	CardPosition  int  `json:"cardPosition"`
	CardPosition2 *int `json:"cardPosition2"`
}

type SwapCardsData struct {
	CardPositions [2]int    `json:"cardPositions"`
	Players       [2]string `json:"players"`
}

type PeekOwnData struct {
	CardPosition int `json:"cardPosition"`
}

type PeekCartaAjenaData struct {
	CardPosition int    `json:"cardPosition"`
	Player       string `json:"player"`
}

func NewStart() Request {
	return Request{Type: ActionStart, Data: struct{}{}}
}

func NewFirstPeek(positions ...int) Request {
	return Request{Type: ActionFirstPeek, Data: FirstPeekData{Positions: positions}}
}

func NewDraw(source DrawSource) Request {
	return Request{Type: ActionDraw, Data: DrawData{Source: source}}
}

func NewCut(withCount bool, declared int) Request {
	return Request{Type: ActionCut, Data: CutData{WithCount: withCount, Declared: declared}}
}

// NewDiscard builds a single discard. Use NewDiscardTwo for a pair.
func NewDiscard(position int) Request {
	return Request{Type: ActionDiscard, Data: DiscardData{CardPosition: position}}
}

func NewDiscardTwo(first, second int) Request {
	return Request{Type: ActionDiscard, Data: DiscardData{CardPosition: first, CardPosition2: &second}}
}

func NewSwapCards(p1 string, c1 int, p2 string, c2 int) Request {
	return Request{Type: ActionSwapCards, Data: SwapCardsData{
		CardPositions: [2]int{c1, c2},
		Players:       [2]string{p1, p2},
	}}
}

func NewPeekOwn(position int) Request {
	return Request{Type: ActionPeekOwnCard, Data: PeekOwnData{CardPosition: position}}
}

func NewPeekCartaAjena(player string, position int) Request {
	return Request{Type: ActionPeekCartaAjena, Data: PeekCartaAjenaData{CardPosition: position, Player: player}}
}
