package protocol

import "strconv"

type Suit string

const (
	SuitSpades   Suit = "spades"
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitJoker    Suit = "joker"
)

type Card struct {
	Suit  Suit `json:"suit"`
	Value int  `json:"value"`
}

// Known reports whether the server disclosed the card face.
func (c Card) Known() bool {
	return c.Suit != ""
}

type DrawSource string

const (
	DrawSourcePile    DrawSource = "pile"
	DrawSourceDiscard DrawSource = "discard"
)

type Effect string

const (
	EffectNone           Effect = "none"
	EffectSwapCards      Effect = "swap_card"
	EffectPeekOwnCard    Effect = "peek_own"
	EffectPeekCartaAjena Effect = "peek_carta_ajena"
)

var effectNames = map[Effect]string{
	EffectSwapCards:      "Swap 2 cards",
	EffectPeekOwnCard:    "Peek card from your hand",
	EffectPeekCartaAjena: "Peek card from other player",
}

// Name returns the display name, or "" for no effect.
func (e Effect) Name() string {
	return effectNames[e]
}

// SuitKind selects a glyph table.
type SuitKind string

const (
	SuitsStandard SuitKind = "standard"
	SuitsSpanish  SuitKind = "spanish"
)

var suitGlyphs = map[SuitKind]map[Suit]string{
	SuitsSpanish: {
		SuitClubs:    "B",
		SuitHearts:   "C",
		SuitDiamonds: "O",
		SuitSpades:   "E",
		SuitJoker:    "J",
	},
	SuitsStandard: {
		SuitClubs:    "♧",
		SuitHearts:   "♥",
		SuitDiamonds: "♢",
		SuitSpades:   "♤",
		SuitJoker:    "J",
	},
}

// ValidSuitKind reports whether k names a known glyph table.
func ValidSuitKind(k SuitKind) bool {
	_, ok := suitGlyphs[k]
	return ok
}

// Face renders the card value with the given glyph table. Jokers have no value.
func (c Card) Face(kind SuitKind) string {
	glyphs, ok := suitGlyphs[kind]
	if !ok {
		glyphs = suitGlyphs[SuitsStandard]
	}
	if c.Suit == SuitJoker {
		return glyphs[SuitJoker]
	}
	return strconv.Itoa(c.Value) + glyphs[c.Suit]
}
