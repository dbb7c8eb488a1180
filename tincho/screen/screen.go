// Package screen derives which local controls are enabled from the latest
// authoritative event.
package screen

import (
	"strings"

	"github.com/gosuda/tincho-client/tincho/protocol"
)

// Control is one local button or input group.
type Control uint16

const (
	ControlStart Control = 1 << iota
	ControlFirstPeek
	ControlDraw
	ControlCut
	ControlDiscard
	ControlDiscardTwo
	ControlCancelDiscardTwo
	ControlSwap
	ControlPeekOwn
	ControlPeekOther
	ControlConfirm
)

var controlNames = []struct {
	c    Control
	name string
}{
	{ControlStart, "start"},
	{ControlFirstPeek, "first_peek"},
	{ControlDraw, "draw"},
	{ControlCut, "cut"},
	{ControlDiscard, "discard"},
	{ControlDiscardTwo, "discard_two"},
	{ControlCancelDiscardTwo, "cancel_discard_two"},
	{ControlSwap, "swap"},
	{ControlPeekOwn, "peek_own"},
	{ControlPeekOther, "peek_other"},
	{ControlConfirm, "confirm"},
}

// Controls is a set of Control values.
type Controls uint16

func (cs Controls) Has(c Control) bool { return cs&Controls(c) != 0 }

func (cs Controls) With(c ...Control) Controls {
	for _, x := range c {
		cs |= Controls(x)
	}
	return cs
}

func (cs Controls) Without(c ...Control) Controls {
	for _, x := range c {
		cs &^= Controls(x)
	}
	return cs
}

// Names lists the enabled controls in declaration order.
func (cs Controls) Names() []string {
	out := make([]string, 0, len(controlNames))
	for _, cn := range controlNames {
		if cs.Has(cn.c) {
			out = append(out, cn.name)
		}
	}
	return out
}

func (cs Controls) String() string {
	return "{" + strings.Join(cs.Names(), ",") + "}"
}

// State names the screen the client is showing.
type State string

const (
	StateLobby      State = "lobby"
	StateStart      State = "start"
	StatePeeked     State = "peeked"
	StateTurn       State = "turn"
	StateDraw       State = "draw"
	StateDiscard    State = "discard"
	StateCut        State = "cut"
	StateStartRound State = "start-round"
	StateEnd        State = "end"
)

// Event is the input of Compute: the latest authoritative event as seen by
// the local player.
type Event struct {
	State State
	// Local is true when the event concerns the local player.
	Local  bool
	Effect protocol.Effect
	Source protocol.DrawSource
	// PendingFirstPeek is used by StateStart after a rejoin: only a player
	// that has not peeked yet gets the control back.
	PendingFirstPeek bool
}

// Compute maps an event to the controls it enables. It has no memory.
func Compute(ev Event) Controls {
	var cs Controls
	switch ev.State {
	case StateLobby:
		cs = cs.With(ControlStart)
	case StateStart, StateStartRound:
		if ev.PendingFirstPeek {
			cs = cs.With(ControlFirstPeek)
		}
	case StateTurn:
		if ev.Local {
			cs = cs.With(ControlDraw, ControlCut)
		}
	case StateDraw:
		if ev.Local {
			cs = cs.With(ControlDiscardTwo)
			if ev.Source != protocol.DrawSourceDiscard {
				cs = cs.With(ControlDiscard)
			}
			switch ev.Effect {
			case protocol.EffectSwapCards:
				cs = cs.With(ControlSwap)
			case protocol.EffectPeekOwnCard:
				cs = cs.With(ControlPeekOwn)
			case protocol.EffectPeekCartaAjena:
				cs = cs.With(ControlPeekOther)
			}
		}
	case StatePeeked, StateDiscard, StateCut, StateEnd:
	}
	return cs
}

// Controller keeps the last computed set plus the first-turn flag.
type Controller struct {
	state     State
	enabled   Controls
	firstTurn bool
}

func NewController() *Controller {
	return &Controller{state: StateLobby, enabled: Compute(Event{State: StateLobby}), firstTurn: true}
}

// Apply recomputes the enabled set. For StateTurn it also reports whether
// this is the first turn notification since the round started, in which case
// readiness marks should be cleared; the flag is consumed.
func (c *Controller) Apply(ev Event) (clearReady bool) {
	switch ev.State {
	case StateStart, StateStartRound:
		c.firstTurn = true
	case StateTurn:
		clearReady = c.firstTurn
		c.firstTurn = false
	}
	c.state = ev.State
	c.enabled = Compute(ev)
	return clearReady
}

// Restore sets state from a snapshot without consulting history.
func (c *Controller) Restore(ev Event, firstTurn bool) {
	c.state = ev.State
	c.enabled = Compute(ev)
	c.firstTurn = firstTurn
}

// Toggle swaps one control for another inside the current set, as the
// double-discard button does with its cancel counterpart.
func (c *Controller) Toggle(off, on Control) {
	if !c.enabled.Has(off) {
		return
	}
	c.enabled = c.enabled.Without(off).With(on)
}

// Disable removes controls until the next Apply.
func (c *Controller) Disable(cs ...Control) {
	c.enabled = c.enabled.Without(cs...)
}

// Enable adds controls until the next Apply.
func (c *Controller) Enable(cs ...Control) {
	c.enabled = c.enabled.With(cs...)
}

func (c *Controller) State() State       { return c.state }
func (c *Controller) Enabled() Controls  { return c.enabled }
func (c *Controller) Has(x Control) bool { return c.enabled.Has(x) }
func (c *Controller) FirstTurn() bool    { return c.firstTurn }
