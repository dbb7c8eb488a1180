package table

import (
	"context"

	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/render"
	"github.com/gosuda/tincho-client/tincho/screen"
)

// onRejoin rebuilds the whole table from a snapshot. Nothing from the
// previous state survives except the connection id and the speed setting.
func (t *Table) onRejoin(_ context.Context, data protocol.RejoinData) error {
	local := data.CurrentTurn == t.local
	anyPending := false
	for _, p := range data.Players {
		if p.PendingFirstPeek {
			anyPending = true
		}
	}

	var (
		ev        screen.Event
		firstTurn bool
		drawn     *Drawn
	)
	switch {
	case anyPending:
		ev = screen.Event{State: screen.StateStart, PendingFirstPeek: localPending(data.Players, t.local)}
		firstTurn = true
	case data.CardInHand:
		src := protocol.DrawSourcePile
		if data.CardInHandSource != nil {
			src = *data.CardInHandSource
		}
		// the effect of a card in hand is not part of the snapshot
		ev = screen.Event{State: screen.StateDraw, Local: local, Source: src, Effect: protocol.EffectNone}
		drawn = &Drawn{Source: src, Effect: protocol.EffectNone}
		if local && data.CardInHandValue != nil {
			drawn.Card = *data.CardInHandValue
		}
	default:
		ev = screen.Event{State: screen.StateTurn, Local: local}
	}

	t.mu.Lock()
	t.screen.Restore(ev, firstTurn)
	t.intent.Reset()
	t.gate.notify()
	t.replacePlayersLocked(data.Players)
	if drawn != nil {
		if pv := t.byID[data.CurrentTurn]; pv != nil {
			pv.Drawn = drawn
		}
	}
	t.turn = data.CurrentTurn
	t.cut = CutInput{}
	t.banner = ""
	t.cardsInDeck = data.CardsInDeck
	t.drawPile = data.CardsInDrawPile
	t.topDiscard = nil
	t.discardPile = 0
	if data.LastDiscarded != nil {
		c := *data.LastDiscarded
		t.topDiscard = &c
		t.discardPile = t.discardCountLocked(data)
	}
	seats := t.seatsLocked()
	p := t.pilesLocked()
	names := t.screen.Enabled().Names()
	var label string
	if drawn != nil {
		label = t.drawnLabel(*drawn, local && drawn.Card.Known())
	}
	t.mu.Unlock()

	t.r.Hide(render.Global(render.KindRoomList))
	t.r.Hide(render.Global(render.KindScoreGrid))
	t.r.Hide(render.Global(render.KindBanner))
	t.r.Hide(render.Global(render.KindCutInfo))
	t.r.Show(render.Global(render.KindSurface))
	t.r.Layout(seats)
	for _, s := range seats {
		if s.Ready {
			t.r.Show(render.Ready(s.ID))
		} else {
			t.r.Hide(render.Ready(s.ID))
		}
	}
	if drawn != nil {
		t.r.Reveal(render.Drawn(data.CurrentTurn), label)
	}
	t.drawPiles(p)
	t.publish(names)
	return nil
}

// discardCountLocked infers the discard pile size from the deck size and
// every card known to be elsewhere. At least the visible top card counts.
func (t *Table) discardCountLocked(data protocol.RejoinData) int {
	if t.cardsInDeck == 0 {
		return 1
	}
	n := t.cardsInDeck - data.CardsInDrawPile
	for _, p := range data.Players {
		n -= p.CardsInHand
	}
	if data.CardInHand {
		n--
	}
	return max(n, 1)
}

func localPending(roster []protocol.Player, local string) bool {
	for _, p := range roster {
		if p.ID == local {
			return p.PendingFirstPeek
		}
	}
	return false
}
