// Package render defines the drawing contract the table drives. Concrete
// renderers only have to report when a transition has finished; the table
// never depends on how a region looks.
package render

import (
	"strconv"
	"time"
)

type Kind string

const (
	KindHand      Kind = "hand"  // one card slot in a player's hand
	KindDrawn     Kind = "drawn" // a player's personal draw slot
	KindName      Kind = "name"
	KindReady     Kind = "ready"
	KindScore     Kind = "score"
	KindDrawPile  Kind = "pile"
	KindDiscard   Kind = "discard"
	KindBanner    Kind = "banner"
	KindCutInfo   Kind = "cut"
	KindSurface   Kind = "surface" // the live game surface
	KindScoreGrid Kind = "scores"  // end of game score table
	KindRoomList  Kind = "rooms"   // room selection
)

// Region addresses a place on screen. Player and Slot are only meaningful
// for the per-player kinds.
type Region struct {
	Kind   Kind
	Player string
	Slot   int
}

func Hand(player string, slot int) Region { return Region{Kind: KindHand, Player: player, Slot: slot} }
func Drawn(player string) Region          { return Region{Kind: KindDrawn, Player: player} }
func Ready(player string) Region          { return Region{Kind: KindReady, Player: player} }
func Score(player string) Region          { return Region{Kind: KindScore, Player: player} }
func Global(k Kind) Region                { return Region{Kind: k} }

func (r Region) String() string {
	switch r.Kind {
	case KindHand:
		return string(r.Kind) + ":" + r.Player + ":" + strconv.Itoa(r.Slot)
	case KindDrawn, KindName, KindReady, KindScore:
		return string(r.Kind) + ":" + r.Player
	default:
		return string(r.Kind)
	}
}

// Unit is the card currently shown at a region. Face is the text shown while
// it travels; empty means face down.
type Unit struct {
	At   Region
	Face string
}

// Seat is one player's roster entry as displayed.
type Seat struct {
	ID     string
	Points int
	Cards  int
	Ready  bool
	Local  bool
}

// Scoreboard is the end of game summary.
type Scoreboard struct {
	Players []string
	Rounds  []ScoreRound
	Totals  []int
}

// ScoreRound holds one row; Scores and Hands are indexed like Players.
type ScoreRound struct {
	Cutter   string
	Declared string
	Scores   []int
	Hands    []string
}

type Renderer interface {
	// Layout replaces every player view; no animation.
	Layout(seats []Seat)
	// SetHand resizes a player's hand. Slots beyond n disappear, new slots
	// appear face down.
	SetHand(player string, n int)
	// Move animates u to the target region and reports completion by
	// closing the returned channel.
	Move(u Unit, to Region, d time.Duration) <-chan struct{}
	Reveal(r Region, text string)
	Show(r Region)
	// Hide turns a card region face down and hides any other region.
	Hide(r Region)
	// Controls lists the enabled local controls.
	Controls(names []string)
	Scores(sb Scoreboard)
}
