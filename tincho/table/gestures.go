package table

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/intent"
	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/render"
	"github.com/gosuda/tincho-client/tincho/screen"
)

// press runs fn with the lock held if control c is enabled, then publishes
// the resulting control set and sends the request fn produced, if any.
func (t *Table) press(c screen.Control, fn func() (*protocol.Request, error)) error {
	t.mu.Lock()
	if !t.screen.Has(c) {
		t.mu.Unlock()
		return ErrControlDisabled
	}
	req, err := fn()
	names := t.screen.Enabled().Names()
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.publish(names)
	if req == nil {
		return nil
	}
	return t.send(*req)
}

func request(r protocol.Request) (*protocol.Request, error) { return &r, nil }

func (t *Table) Start() error {
	return t.press(screen.ControlStart, func() (*protocol.Request, error) {
		return request(protocol.NewStart())
	})
}

func (t *Table) FirstPeek() error {
	return t.press(screen.ControlFirstPeek, func() (*protocol.Request, error) {
		t.screen.Disable(screen.ControlFirstPeek)
		return request(protocol.NewFirstPeek(0, 1))
	})
}

func (t *Table) Draw(source protocol.DrawSource) error {
	return t.press(screen.ControlDraw, func() (*protocol.Request, error) {
		switch source {
		case protocol.DrawSourcePile:
		case protocol.DrawSourceDiscard:
			if t.discardPile == 0 {
				return nil, ErrEmptyPile
			}
		default:
			return nil, fmt.Errorf("draw: unknown source %q", source)
		}
		t.screen.Disable(screen.ControlDraw, screen.ControlCut)
		return request(protocol.NewDraw(source))
	})
}

// SetCutInput updates the cut configuration shown next to the cut control.
func (t *Table) SetCutInput(in CutInput) error {
	if in.Declared < 0 {
		return fmt.Errorf("cut: declared %d is negative", in.Declared)
	}
	t.mu.Lock()
	t.cut = in
	t.mu.Unlock()
	return nil
}

func (t *Table) CutInput() CutInput {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cut
}

func (t *Table) Cut(withCount bool, declared int) error {
	if declared < 0 {
		return fmt.Errorf("cut: declared %d is negative", declared)
	}
	return t.press(screen.ControlCut, func() (*protocol.Request, error) {
		t.screen.Disable(screen.ControlDraw, screen.ControlCut)
		return request(protocol.NewCut(withCount, declared))
	})
}

func (t *Table) disableDrawPhaseLocked() {
	t.screen.Disable(screen.ControlDiscard, screen.ControlDiscardTwo, screen.ControlCancelDiscardTwo,
		screen.ControlSwap, screen.ControlPeekOwn, screen.ControlPeekOther)
}

// DiscardDrawn discards the card in the local draw slot.
func (t *Table) DiscardDrawn() error {
	return t.press(screen.ControlDiscard, func() (*protocol.Request, error) {
		t.intent.Reset()
		t.disableDrawPhaseLocked()
		return request(protocol.NewDiscard(-1))
	})
}

func (t *Table) ArmDiscardTwo() error {
	return t.press(screen.ControlDiscardTwo, func() (*protocol.Request, error) {
		if err := t.intent.SetMode(intent.ModeDiscardTwo); err != nil {
			return nil, err
		}
		t.screen.Toggle(screen.ControlDiscardTwo, screen.ControlCancelDiscardTwo)
		return nil, nil
	})
}

func (t *Table) CancelDiscardTwo() error {
	return t.press(screen.ControlCancelDiscardTwo, func() (*protocol.Request, error) {
		t.intent.Reset()
		t.screen.Toggle(screen.ControlCancelDiscardTwo, screen.ControlDiscardTwo)
		return nil, nil
	})
}

func (t *Table) arm(c screen.Control, m intent.Mode) error {
	return t.press(c, func() (*protocol.Request, error) {
		if t.intent.Mode() == intent.ModeDiscardTwo {
			t.screen.Toggle(screen.ControlCancelDiscardTwo, screen.ControlDiscardTwo)
		}
		return nil, t.intent.SetMode(m)
	})
}

func (t *Table) ArmSwap() error      { return t.arm(screen.ControlSwap, intent.ModeSwap) }
func (t *Table) ArmPeekOwn() error   { return t.arm(screen.ControlPeekOwn, intent.ModePeekOwn) }
func (t *Table) ArmPeekOther() error { return t.arm(screen.ControlPeekOther, intent.ModePeekOther) }

// ToggleSpeed switches scene durations between normal and double speed.
func (t *Table) ToggleSpeed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.speed == 1 {
		t.speed = 2
	} else {
		t.speed = 1
	}
	return t.speed
}

// Confirm releases a scene waiting on the confirmation gate. It reports
// whether one was waiting.
func (t *Table) Confirm() bool {
	return t.gate.notify()
}

// ClickCard feeds a hand-card click to the active action mode. Clicks are
// only meaningful while the local player holds a drawn card.
func (t *Table) ClickCard(player string, pos int) error {
	t.mu.Lock()
	req, err := t.clickLocked(player, pos)
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	if err != nil {
		log.Debug().Err(err).Str("player", player).Int("pos", pos).Msg("[table] click rejected")
		return err
	}
	t.publish(names)
	if req == nil {
		return nil
	}
	return t.send(*req)
}

func (t *Table) clickLocked(player string, pos int) (*protocol.Request, error) {
	// the double-discard pair is offered exactly while a drawn card awaits
	// a decision
	armed := t.screen.Has(screen.ControlDiscardTwo) || t.screen.Has(screen.ControlCancelDiscardTwo)
	if t.turn != t.local || !armed {
		return nil, ErrNotYourMove
	}
	pv := t.byID[player]
	if pv == nil || pos < 0 || pos >= pv.Cards {
		return nil, fmt.Errorf("%w: %s/%d", ErrNoSuchCard, player, pos)
	}
	if t.moving[render.Hand(player, pos)] {
		return nil, ErrSlotMoving
	}
	req, err := t.intent.Click(player, pos)
	if err != nil {
		return nil, err
	}
	if req != nil {
		t.disableDrawPhaseLocked()
	}
	return req, nil
}
