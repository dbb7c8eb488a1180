package table

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/render"
	"github.com/gosuda/tincho-client/tincho/screen"
)

func (t *Table) onGameConfig(_ context.Context, data protocol.GameConfigData) error {
	t.mu.Lock()
	t.cardsInDeck = data.CardsInDeck
	t.mu.Unlock()
	return nil
}

func (t *Table) onPlayersChanged(_ context.Context, data protocol.PlayersChangedData) error {
	t.mu.Lock()
	t.replacePlayersLocked(data.Players)
	seats := t.seatsLocked()
	t.mu.Unlock()

	t.r.Layout(seats)
	return nil
}

func (t *Table) onGameStart(ctx context.Context, data protocol.StartRoundData) error {
	return t.startRound(ctx, screen.StateStart, data)
}

func (t *Table) onStartNextRound(ctx context.Context, data protocol.StartRoundData) error {
	return t.startRound(ctx, screen.StateStartRound, data)
}

func (t *Table) startRound(_ context.Context, state screen.State, data protocol.StartRoundData) error {
	t.mu.Lock()
	t.screen.Apply(screen.Event{State: state, PendingFirstPeek: localPending(data.Players, t.local)})
	t.intent.Reset()
	t.turn = ""
	t.replacePlayersLocked(data.Players)
	t.resetPilesLocked(len(data.Players), data.TopDiscard)
	seats := t.seatsLocked()
	p := t.pilesLocked()
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	t.r.Hide(render.Global(render.KindScoreGrid))
	t.r.Hide(render.Global(render.KindBanner))
	t.r.Show(render.Global(render.KindSurface))
	t.r.Layout(seats)
	t.drawPiles(p)
	t.publish(names)
	return nil
}

func (t *Table) onPlayerPeeked(ctx context.Context, data protocol.PlayerFirstPeekedData) error {
	local := data.Player == t.local
	t.mu.Lock()
	if pv := t.byID[data.Player]; pv != nil {
		pv.Ready = true
		pv.PendingFirstPeek = false
	}
	if local {
		t.screen.Apply(screen.Event{State: screen.StatePeeked, Local: true})
		t.screen.Enable(screen.ControlConfirm)
	}
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	t.r.Show(render.Ready(data.Player))
	if !local {
		return nil
	}

	confirmed := t.gate.arm()
	t.publish(names)
	for i, c := range data.Cards {
		t.r.Reveal(render.Hand(t.local, i), t.face(c))
	}
	err := t.waitConfirm(ctx, confirmed, t.dur(t.cfg.FirstPeekHide))
	for i := range data.Cards {
		t.r.Hide(render.Hand(t.local, i))
	}
	t.mu.Lock()
	t.screen.Disable(screen.ControlConfirm)
	names = t.screen.Enabled().Names()
	t.mu.Unlock()
	t.publish(names)
	return err
}

func (t *Table) onTurn(_ context.Context, data protocol.TurnData) error {
	local := data.Player == t.local
	t.mu.Lock()
	clearReady := t.screen.Apply(screen.Event{State: screen.StateTurn, Local: local})
	t.turn = data.Player
	t.intent.Reset()
	t.cut = CutInput{}
	var ids []string
	for _, pv := range t.players {
		if clearReady {
			pv.Ready = false
		}
		pv.Drawn = nil
		ids = append(ids, pv.ID)
	}
	names := t.screen.Enabled().Names()
	chime := t.onLocalTurn
	t.mu.Unlock()

	if clearReady {
		for _, id := range ids {
			t.r.Hide(render.Ready(id))
		}
	}
	t.publish(names)
	if local && chime != nil {
		chime()
	}
	return nil
}

func (t *Table) drawnLabel(d Drawn, visible bool) string {
	label := "[ ]"
	if visible {
		label = t.face(d.Card)
	}
	if name := d.Effect.Name(); name != "" {
		label += " (Effect: " + name + ")"
	}
	return label
}

func (t *Table) onDraw(ctx context.Context, data protocol.DrawUpdateData) error {
	local := data.Player == t.local
	if data.Effect == "" {
		data.Effect = protocol.EffectNone
	}
	d := Drawn{Card: data.Card, Source: data.Source, Effect: data.Effect}
	from := render.Global(render.KindDrawPile)

	t.mu.Lock()
	if pv := t.byID[data.Player]; pv != nil {
		pv.Drawn = &d
	}
	if data.Source == protocol.DrawSourceDiscard {
		from = render.Global(render.KindDiscard)
		t.discardPile = max(t.discardPile-1, 0)
		t.topDiscard = nil
	} else {
		t.drawPile = max(t.drawPile-1, 0)
	}
	t.screen.Apply(screen.Event{State: screen.StateDraw, Local: local, Effect: data.Effect, Source: data.Source})
	t.intent.Reset()
	p := t.pilesLocked()
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	if err := await(ctx, t.r.Move(render.Unit{At: from}, render.Drawn(data.Player), t.dur(t.cfg.Animation))); err != nil {
		return err
	}
	visible := data.Card.Known() && (local || data.Source == protocol.DrawSourceDiscard)
	t.r.Reveal(render.Drawn(data.Player), t.drawnLabel(d, visible))
	t.drawPiles(p)
	t.publish(names)
	return nil
}

// handDelta is the net change of a hand after discarding from positions;
// -1 names the drawn card. The drawn card fills the first vacated slot.
func handDelta(positions []int) int {
	fromHand := 0
	for _, pos := range positions {
		if pos >= 0 {
			fromHand++
		}
	}
	if fromHand == 0 {
		return 0
	}
	return 1 - fromHand
}

func (t *Table) onDiscard(ctx context.Context, data protocol.DiscardUpdateData) error {
	local := data.Player == t.local
	t.mu.Lock()
	cards := 0
	if pv := t.byID[data.Player]; pv != nil {
		pv.Cards += handDelta(data.CardsPositions)
		pv.Drawn = nil
		cards = pv.Cards
	}
	t.discardPile += len(data.Cards)
	if n := len(data.Cards); n > 0 {
		top := data.Cards[n-1]
		t.topDiscard = &top
	}
	if data.CycledPiles {
		t.cyclePilesLocked()
	}
	t.screen.Apply(screen.Event{State: screen.StateDiscard, Local: local})
	t.intent.Reset()
	p := t.pilesLocked()
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	t.publish(names)
	anim := t.dur(t.cfg.Animation)
	discard := render.Global(render.KindDiscard)
	drawnPlaced := false
	for i, c := range data.Cards {
		if i >= len(data.CardsPositions) {
			break
		}
		pos := data.CardsPositions[i]
		face := t.face(c)
		if pos < 0 {
			if err := await(ctx, t.r.Move(render.Unit{At: render.Drawn(data.Player), Face: face}, discard, anim)); err != nil {
				return err
			}
			t.r.Reveal(discard, face)
			continue
		}
		slot := render.Hand(data.Player, pos)
		t.r.Reveal(slot, face)
		if err := await(ctx, t.r.Move(render.Unit{At: slot, Face: face}, discard, anim)); err != nil {
			return err
		}
		t.r.Reveal(discard, face)
		if !drawnPlaced {
			drawnPlaced = true
			if err := await(ctx, t.r.Move(render.Unit{At: render.Drawn(data.Player)}, slot, anim)); err != nil {
				return err
			}
		}
		t.r.Hide(slot)
	}
	t.r.Hide(render.Drawn(data.Player))
	t.r.SetHand(data.Player, cards)
	t.drawPiles(p)
	return nil
}

func (t *Table) onFailedDoubleDiscard(ctx context.Context, data protocol.FailedDoubleDiscardData) error {
	local := data.Player == t.local
	t.mu.Lock()
	cards := 0
	if pv := t.byID[data.Player]; pv != nil {
		pv.Cards++
		pv.Drawn = nil
		cards = pv.Cards
	}
	top := data.TopOfDiscard
	t.topDiscard = &top
	switch {
	case data.CycledPiles:
		t.cyclePilesLocked()
	case t.discardPile == 0:
		// an empty discard pile is refilled from the draw pile
		t.discardPile = 1
		t.drawPile = max(t.drawPile-1, 0)
	}
	t.screen.Apply(screen.Event{State: screen.StateDiscard, Local: local})
	t.intent.Reset()
	p := t.pilesLocked()
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	t.publish(names)
	var shown []render.Region
	for i, c := range data.Cards {
		if i >= len(data.CardsPositions) || data.CardsPositions[i] < 0 {
			continue
		}
		slot := render.Hand(data.Player, data.CardsPositions[i])
		t.r.Reveal(slot, t.face(c))
		shown = append(shown, slot)
	}
	last := render.Hand(data.Player, cards-1)
	t.r.SetHand(data.Player, cards)
	if err := await(ctx, t.r.Move(render.Unit{At: render.Drawn(data.Player)}, last, t.dur(t.cfg.Animation))); err != nil {
		return err
	}
	t.r.Hide(render.Drawn(data.Player))
	if err := sleep(ctx, t.dur(t.cfg.FailedHold)); err != nil {
		return err
	}
	for _, slot := range append(shown, last) {
		t.r.Hide(slot)
	}
	t.drawPiles(p)
	return nil
}

func (t *Table) onPeek(ctx context.Context, data protocol.PeekCardData) error {
	text := "[?]"
	if data.Card.Known() {
		text = t.face(data.Card)
	}
	slot := render.Hand(data.Player, data.CardPosition)

	t.mu.Lock()
	t.intent.Reset()
	t.screen.Enable(screen.ControlConfirm)
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	confirmed := t.gate.arm()
	t.r.Reveal(slot, text)
	t.publish(names)

	hide := t.dur(t.cfg.PeekHide)
	t.q.EnqueueUrgent(func(ctx context.Context) error {
		err := t.waitConfirm(ctx, confirmed, hide)
		t.r.Hide(slot)
		t.mu.Lock()
		t.screen.Disable(screen.ControlConfirm)
		names := t.screen.Enabled().Names()
		t.mu.Unlock()
		t.publish(names)
		return err
	})
	return nil
}

func (t *Table) onSwap(ctx context.Context, data protocol.SwapCardsUpdateData) error {
	if len(data.Players) != 2 || len(data.CardsPositions) != 2 {
		log.Warn().Int("players", len(data.Players)).Int("positions", len(data.CardsPositions)).Msg("[table] swap needs two cards")
		return nil
	}
	a := render.Hand(data.Players[0], data.CardsPositions[0])
	b := render.Hand(data.Players[1], data.CardsPositions[1])

	t.mu.Lock()
	t.intent.Reset()
	t.moving[a] = true
	t.moving[b] = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.moving, a)
		delete(t.moving, b)
		t.mu.Unlock()
	}()

	leg := t.dur(t.cfg.SwapLeg)
	if err := await(ctx, t.r.Move(render.Unit{At: a}, b, leg)); err != nil {
		return err
	}
	return await(ctx, t.r.Move(render.Unit{At: b}, a, leg))
}

func (t *Table) onCut(ctx context.Context, data protocol.CutUpdateData) error {
	t.mu.Lock()
	t.screen.Apply(screen.Event{State: screen.StateCut, Local: data.Player == t.local})
	t.screen.Enable(screen.ControlConfirm)
	t.intent.Reset()
	t.replacePlayersLocked(data.Players)
	seats := t.seatsLocked()
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	confirmed := t.gate.arm()
	t.publish(names)
	for i, hand := range data.Hands {
		if i >= len(data.Players) {
			break
		}
		id := data.Players[i].ID
		t.r.SetHand(id, len(hand))
		for j, c := range hand {
			t.r.Reveal(render.Hand(id, j), t.face(c))
		}
	}
	info := render.Global(render.KindCutInfo)
	t.r.Reveal(info, cutSummary(data))
	t.r.Show(info)

	err := t.waitConfirm(ctx, confirmed, 0)

	t.mu.Lock()
	t.screen.Disable(screen.ControlConfirm)
	names = t.screen.Enabled().Names()
	t.mu.Unlock()
	t.r.Hide(info)
	t.r.Layout(seats)
	t.publish(names)
	return err
}

func cutSummary(data protocol.CutUpdateData) string {
	who := render.Sanitize(data.Player)
	if !data.WithCount {
		return who + " cut without declaring"
	}
	return who + " cut declaring " + strconv.Itoa(data.Declared)
}

func (t *Table) onError(_ context.Context, data protocol.ErrorData) error {
	log.Warn().Str("message", data.Message).Msg("[table] server error")
	t.Banner(data.Message)
	return nil
}

func (t *Table) onEndGame(_ context.Context, data protocol.EndGameData) error {
	t.mu.Lock()
	t.screen.Apply(screen.Event{State: screen.StateEnd})
	t.intent.Reset()
	roster := make([]string, 0, len(t.players))
	for _, pv := range t.players {
		roster = append(roster, pv.ID)
	}
	names := t.screen.Enabled().Names()
	t.mu.Unlock()

	sb := scoreboard(roster, data.Rounds, t.cfg.Suits)
	t.r.Hide(render.Global(render.KindSurface))
	t.r.Scores(sb)
	t.r.Show(render.Global(render.KindScoreGrid))
	t.publish(names)
	return nil
}

// scoreboard builds the end of game table from the round history alone.
// Players missing from the roster but present in a round are appended in
// order of appearance.
func scoreboard(roster []string, rounds []protocol.Round, kind protocol.SuitKind) render.Scoreboard {
	players := append([]string(nil), roster...)
	seen := make(map[string]bool, len(players))
	for _, id := range players {
		seen[id] = true
	}
	for _, r := range rounds {
		for _, id := range slices.Sorted(maps.Keys(r.Scores)) {
			if !seen[id] {
				seen[id] = true
				players = append(players, id)
			}
		}
	}

	sb := render.Scoreboard{Totals: make([]int, len(players))}
	for _, id := range players {
		sb.Players = append(sb.Players, render.Sanitize(id))
	}
	for _, r := range rounds {
		row := render.ScoreRound{
			Cutter:   render.Sanitize(r.Cutter),
			Declared: "-",
			Scores:   make([]int, len(players)),
			Hands:    make([]string, len(players)),
		}
		if r.WithCount {
			row.Declared = strconv.Itoa(r.Declared)
		}
		for i, id := range players {
			row.Scores[i] = r.Scores[id]
			sb.Totals[i] += r.Scores[id]
			faces := make([]string, 0, len(r.Hands[id]))
			for _, c := range r.Hands[id] {
				faces = append(faces, c.Face(kind))
			}
			row.Hands[i] = strings.Join(faces, " ")
		}
		sb.Rounds = append(sb.Rounds, row)
	}
	return sb
}

// waitConfirm suspends until the confirm control fires, timeout elapses
// (zero means no timeout) or ctx ends.
func (t *Table) waitConfirm(ctx context.Context, confirmed <-chan struct{}, timeout time.Duration) error {
	defer t.gate.disarm(confirmed)
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-confirmed:
	case <-expired:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
