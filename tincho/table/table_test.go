package table

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/render"
)

type sink struct {
	mu   sync.Mutex
	reqs []protocol.Request
}

func (s *sink) Send(r protocol.Request) error {
	s.mu.Lock()
	s.reqs = append(s.reqs, r)
	s.mu.Unlock()
	return nil
}

func (s *sink) sent() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Request(nil), s.reqs...)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Animation = time.Millisecond
	cfg.SwapLeg = time.Millisecond
	cfg.PeekHide = time.Millisecond
	cfg.FirstPeekHide = time.Millisecond
	cfg.FailedHold = time.Millisecond
	return cfg
}

type harness struct {
	*Table
	rec  *render.Recorder
	out  *sink
	test *testing.T
}

func newHarness(t *testing.T, local string, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rec := render.NewRecorder()
	out := &sink{}
	tb := New(cfg, local, rec, out)
	tb.Play(ctx)
	return &harness{Table: tb, rec: rec, out: out, test: t}
}

func (h *harness) feed(typ protocol.UpdateType, data any) {
	h.test.Helper()
	raw, err := json.Marshal(map[string]any{"type": typ, "data": data})
	if err != nil {
		h.test.Fatalf("marshal %s: %v", typ, err)
	}
	if err := h.HandleEnvelope(raw); err != nil {
		h.test.Fatalf("handle %s: %v", typ, err)
	}
}

func (h *harness) idle() {
	h.test.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.WaitIdle(ctx); err != nil {
		h.test.Fatalf("scenes did not finish: %v", err)
	}
}

// confirmWhenArmed retries until a scene is waiting on the gate.
func (h *harness) confirmWhenArmed() {
	h.test.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !h.Confirm() {
		if time.Now().After(deadline) {
			h.test.Fatalf("no scene waited for confirmation")
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) controls() []string {
	return h.Snapshot().Controls
}

func (h *harness) player(id string) PlayerView {
	h.test.Helper()
	for _, pv := range h.Snapshot().Players {
		if pv.ID == id {
			return pv
		}
	}
	h.test.Fatalf("no player %s", id)
	return PlayerView{}
}

func roster(cards int, ids ...string) []protocol.Player {
	out := make([]protocol.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, protocol.Player{ID: id, CardsInHand: cards})
	}
	return out
}

var hearts7 = protocol.Card{Suit: protocol.SuitHearts, Value: 7}

func TestScenarioDrawThenDiscardDrawn(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	players := roster(4, "A", "B")

	h.feed(protocol.UpdatePlayersChanged, protocol.PlayersChangedData{Players: players})
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: players, TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.idle()
	if got := h.controls(); !slices.Equal(got, []string{"draw", "cut"}) {
		t.Fatalf("after turn controls = %v", got)
	}

	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourcePile, Card: hearts7, Effect: protocol.EffectNone})
	h.idle()
	if got := h.controls(); !slices.Equal(got, []string{"discard", "discard_two"}) {
		t.Fatalf("after draw controls = %v", got)
	}
	if got := h.rec.Face(render.Drawn("A")); got != "[7♥]" {
		t.Fatalf("drawn face = %q", got)
	}

	h.feed(protocol.UpdateDiscard, protocol.DiscardUpdateData{Player: "A", CardsPositions: []int{-1}, Cards: []protocol.Card{hearts7}})
	h.idle()
	if got := h.controls(); len(got) != 0 {
		t.Fatalf("after discard controls = %v", got)
	}
	if got := h.player("A").Cards; got != 4 {
		t.Fatalf("hand count = %d, want 4", got)
	}
	if got := h.rec.HandSize("A"); got != 4 {
		t.Fatalf("rendered hand = %d, want 4", got)
	}
}

func TestStartButtonWhilePlaying(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	if err := h.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	sent := h.out.sent()
	if len(sent) != 1 || sent[0].Type != protocol.ActionStart {
		t.Fatalf("sent = %+v", sent)
	}
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.idle()
	if err := h.Start(); !errors.Is(err, ErrControlDisabled) {
		t.Fatalf("start after game start: %v", err)
	}
}

func TestRemoteDrawStaysFaceDown(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	players := roster(4, "A", "B")
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: players, TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "B"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "B", Source: protocol.DrawSourcePile, Effect: protocol.EffectSwapCards})
	h.idle()

	if got := h.controls(); len(got) != 0 {
		t.Fatalf("remote draw enabled controls %v", got)
	}
	if got := h.rec.Face(render.Drawn("B")); got != "[ ] (Effect: Swap 2 cards)" {
		t.Fatalf("drawn label = %q", got)
	}
}

func TestHandDelta(t *testing.T) {
	tests := []struct {
		positions []int
		want      int
	}{
		{[]int{-1}, 0},
		{[]int{2}, 0},
		{[]int{2, 5}, -1},
		{[]int{-1, -1}, 0},
	}
	for _, tt := range tests {
		if got := handDelta(tt.positions); got != tt.want {
			t.Fatalf("handDelta(%v) = %d, want %d", tt.positions, got, tt.want)
		}
	}
}

func TestDoubleDiscardShrinksHand(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourcePile, Card: hearts7})
	h.idle()

	if err := h.ArmDiscardTwo(); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if got := h.controls(); !slices.Contains(got, "cancel_discard_two") || slices.Contains(got, "discard_two") {
		t.Fatalf("controls after arming = %v", got)
	}
	if err := h.ClickCard("B", 0); err == nil {
		t.Fatalf("click on another player's card accepted")
	}
	if err := h.ClickCard("A", 2); err != nil {
		t.Fatalf("first click: %v", err)
	}
	if buf := h.Snapshot().DiscardTwoBuffer; buf == nil || *buf != 2 {
		t.Fatalf("buffer = %v", buf)
	}
	if err := h.ClickCard("A", 3); err != nil {
		t.Fatalf("second click: %v", err)
	}
	sent := h.out.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d requests", len(sent))
	}
	data := sent[0].Data.(protocol.DiscardData)
	if data.CardPosition != 2 || data.CardPosition2 == nil || *data.CardPosition2 != 3 {
		t.Fatalf("discard data = %+v", data)
	}
	if err := h.ClickCard("A", 0); !errors.Is(err, ErrNotYourMove) {
		t.Fatalf("click after emission: %v", err)
	}

	other := protocol.Card{Suit: protocol.SuitSpades, Value: 7}
	h.feed(protocol.UpdateDiscard, protocol.DiscardUpdateData{Player: "A", CardsPositions: []int{2, 3}, Cards: []protocol.Card{hearts7, other}})
	h.idle()
	if got := h.player("A").Cards; got != 3 {
		t.Fatalf("hand = %d, want 3", got)
	}
	if got := h.rec.HandSize("A"); got != 3 {
		t.Fatalf("rendered hand = %d, want 3", got)
	}
	if st := h.Snapshot(); st.DiscardPile != 3 || st.TopDiscard == nil || *st.TopDiscard != other {
		t.Fatalf("discard pile = %d top %v", st.DiscardPile, st.TopDiscard)
	}
}

func TestFailedDoubleDiscard(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourcePile, Card: hearts7})
	top := protocol.Card{Suit: protocol.SuitClubs, Value: 1}
	h.feed(protocol.UpdateFailedDoubleDiscard, protocol.FailedDoubleDiscardData{
		Player:         "A",
		CardsPositions: []int{0, 1},
		Cards:          []protocol.Card{{Suit: protocol.SuitClubs, Value: 3}, {Suit: protocol.SuitClubs, Value: 4}},
		TopOfDiscard:   top,
	})
	h.idle()

	if got := h.player("A").Cards; got != 5 {
		t.Fatalf("hand = %d, want 5", got)
	}
	if got := h.rec.HandSize("A"); got != 5 {
		t.Fatalf("rendered hand = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		if f := h.rec.Face(render.Hand("A", i)); f != "" {
			t.Fatalf("slot %d still face up: %q", i, f)
		}
	}
	calls := h.rec.Calls()
	if !slices.Contains(calls, `reveal hand:A:0 "[3♧]"`) || !slices.Contains(calls, `reveal hand:A:1 "[4♧]"`) {
		t.Fatalf("attempted cards never revealed: %v", calls)
	}
	if st := h.Snapshot(); st.TopDiscard == nil || *st.TopDiscard != top {
		t.Fatalf("top discard = %v", st.TopDiscard)
	}
	if got := h.rec.Face(render.Global(render.KindDiscard)); got != "[1♧] 1" {
		t.Fatalf("discard label = %q", got)
	}
}

func TestFailedDoubleDiscardRefillsEmptyDiscard(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameConfig, protocol.GameConfigData{CardsInDeck: 50})
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourceDiscard, Card: hearts7})
	h.idle()
	if st := h.Snapshot(); st.DrawPile != 41 || st.DiscardPile != 0 {
		t.Fatalf("after draw from discard draw=%d discard=%d", st.DrawPile, st.DiscardPile)
	}

	h.feed(protocol.UpdateFailedDoubleDiscard, protocol.FailedDoubleDiscardData{
		Player:         "A",
		CardsPositions: []int{0, 1},
		Cards:          []protocol.Card{{Suit: protocol.SuitClubs, Value: 3}, {Suit: protocol.SuitClubs, Value: 4}},
		TopOfDiscard:   protocol.Card{Suit: protocol.SuitClubs, Value: 1},
	})
	h.idle()
	if st := h.Snapshot(); st.DrawPile != 40 || st.DiscardPile != 1 {
		t.Fatalf("after failed discard draw=%d discard=%d", st.DrawPile, st.DiscardPile)
	}
	if got := h.rec.Face(render.Global(render.KindDiscard)); got != "[1♧] 1" {
		t.Fatalf("discard label = %q", got)
	}
}

func TestPileCounters(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameConfig, protocol.GameConfigData{CardsInDeck: 50})
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.idle()
	if st := h.Snapshot(); st.DrawPile != 41 || st.DiscardPile != 1 {
		t.Fatalf("after deal draw=%d discard=%d", st.DrawPile, st.DiscardPile)
	}

	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "B"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "B", Source: protocol.DrawSourcePile})
	h.feed(protocol.UpdateDiscard, protocol.DiscardUpdateData{Player: "B", CardsPositions: []int{-1}, Cards: []protocol.Card{hearts7}})
	h.idle()
	if st := h.Snapshot(); st.DrawPile != 40 || st.DiscardPile != 2 {
		t.Fatalf("after discard draw=%d discard=%d", st.DrawPile, st.DiscardPile)
	}

	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourceDiscard, Card: hearts7})
	h.feed(protocol.UpdateDiscard, protocol.DiscardUpdateData{Player: "A", CardsPositions: []int{0}, Cards: []protocol.Card{hearts7}, CycledPiles: true})
	h.idle()
	if st := h.Snapshot(); st.DrawPile != 1 || st.DiscardPile != 1 {
		t.Fatalf("after cycle draw=%d discard=%d", st.DrawPile, st.DiscardPile)
	}
}

func TestDrawFromDiscardOffersNoPlainDiscard(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.idle()
	if err := h.Draw(protocol.DrawSourceDiscard); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if got := h.controls(); slices.Contains(got, "draw") || slices.Contains(got, "cut") {
		t.Fatalf("draw controls still enabled: %v", got)
	}
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourceDiscard, Card: hearts7})
	h.idle()
	if got := h.controls(); !slices.Equal(got, []string{"discard_two"}) {
		t.Fatalf("controls = %v", got)
	}
	if err := h.DiscardDrawn(); !errors.Is(err, ErrControlDisabled) {
		t.Fatalf("discard drawn: %v", err)
	}
	if err := h.ClickCard("A", 1); err != nil {
		t.Fatalf("click: %v", err)
	}
	sent := h.out.sent()
	last := sent[len(sent)-1]
	if last.Type != protocol.ActionDiscard || last.Data.(protocol.DiscardData).CardPosition != 1 {
		t.Fatalf("last request = %+v", last)
	}
}

func TestFirstPeekWaitsForConfirmation(t *testing.T) {
	cfg := fastConfig()
	cfg.FirstPeekHide = time.Hour
	h := newHarness(t, "A", cfg)
	players := []protocol.Player{
		{ID: "A", CardsInHand: 4, PendingFirstPeek: true},
		{ID: "B", CardsInHand: 4, PendingFirstPeek: true},
	}
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: players, TopDiscard: hearts7})
	h.idle()
	if err := h.FirstPeek(); err != nil {
		t.Fatalf("first peek: %v", err)
	}
	h.feed(protocol.UpdatePlayerFirstPeeked, protocol.PlayerFirstPeekedData{
		Player: "A",
		Cards:  []protocol.Card{hearts7, {Suit: protocol.SuitJoker}},
	})
	h.confirmWhenArmed()
	h.idle()

	calls := h.rec.Calls()
	if !slices.Contains(calls, `reveal hand:A:1 "[J]"`) {
		t.Fatalf("peeked cards not revealed: %v", calls)
	}
	if f := h.rec.Face(render.Hand("A", 0)); f != "" {
		t.Fatalf("slot 0 still face up: %q", f)
	}
	if !h.player("A").Ready || h.player("B").Ready {
		t.Fatalf("ready marks wrong: %+v", h.Snapshot().Players)
	}

	h.feed(protocol.UpdatePlayerFirstPeeked, protocol.PlayerFirstPeekedData{Player: "B"})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "B"})
	h.idle()
	if h.player("A").Ready || h.player("B").Ready {
		t.Fatalf("first turn did not clear ready marks")
	}
}

func TestPeekHidesBeforeNextEvent(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourcePile, Card: hearts7, Effect: protocol.EffectPeekCartaAjena})
	h.feed(protocol.UpdatePeekCard, protocol.PeekCardData{Player: "B", CardPosition: 2, Card: hearts7})
	h.feed(protocol.UpdateDiscard, protocol.DiscardUpdateData{Player: "A", CardsPositions: []int{-1}, Cards: []protocol.Card{hearts7}})
	h.idle()

	calls := h.rec.Calls()
	reveal := slices.Index(calls, `reveal hand:B:2 "[7♥]"`)
	hide := slices.Index(calls, "hide hand:B:2")
	discard := slices.Index(calls, "move drawn:A -> discard 1ms")
	if reveal < 0 || hide < 0 || discard < 0 {
		t.Fatalf("missing calls: %v", calls)
	}
	if !(reveal < hide && hide < discard) {
		t.Fatalf("order reveal=%d hide=%d discard=%d", reveal, hide, discard)
	}
}

func TestPeekUnknownCardShowsMarker(t *testing.T) {
	cfg := fastConfig()
	cfg.PeekHide = time.Hour
	h := newHarness(t, "A", cfg)
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdatePeekCard, protocol.PeekCardData{Player: "A", CardPosition: 1})
	h.confirmWhenArmed()
	h.idle()
	if !slices.Contains(h.rec.Calls(), `reveal hand:A:1 "[?]"`) {
		t.Fatalf("marker not shown: %v", h.rec.Calls())
	}
	if f := h.rec.Face(render.Hand("A", 1)); f != "" {
		t.Fatalf("marker not hidden: %q", f)
	}
}

func TestSwapPlaysBothLegs(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateSwapCards, protocol.SwapCardsUpdateData{CardsPositions: []int{0, 3}, Players: []string{"A", "B"}})
	h.idle()

	calls := h.rec.Calls()
	first := slices.Index(calls, "move hand:A:0 -> hand:B:3 1ms")
	second := slices.Index(calls, "move hand:B:3 -> hand:A:0 1ms")
	if first < 0 || second < first {
		t.Fatalf("legs out of order: %v", calls)
	}
}

func TestCutWaitsForConfirmation(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(2, "A", "B"), TopDiscard: hearts7})
	h.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	h.idle()
	if err := h.Cut(true, 3); err != nil {
		t.Fatalf("cut: %v", err)
	}
	scored := []protocol.Player{{ID: "A", CardsInHand: 2, Points: -3}, {ID: "B", CardsInHand: 2, Points: 12}}
	h.feed(protocol.UpdateCut, protocol.CutUpdateData{
		WithCount: true,
		Declared:  3,
		Player:    "A",
		Players:   scored,
		Hands:     [][]protocol.Card{{hearts7, hearts7}, {{Suit: protocol.SuitSpades, Value: 12}, hearts7}},
	})
	h.confirmWhenArmed()
	h.idle()

	calls := h.rec.Calls()
	if !slices.Contains(calls, `reveal hand:B:0 "[12♤]"`) {
		t.Fatalf("hands not revealed: %v", calls)
	}
	if !slices.Contains(calls, `reveal cut "A cut declaring 3"`) {
		t.Fatalf("cut summary missing: %v", calls)
	}
	if !h.rec.Hidden(render.Global(render.KindCutInfo)) {
		t.Fatalf("cut info still shown")
	}
	if f := h.rec.Face(render.Hand("B", 0)); f != "" {
		t.Fatalf("hand still revealed: %q", f)
	}
	if got := h.player("B").Points; got != 12 {
		t.Fatalf("points = %d", got)
	}
	sent := h.out.sent()
	if cut := sent[len(sent)-1].Data.(protocol.CutData); !cut.WithCount || cut.Declared != 3 {
		t.Fatalf("cut request = %+v", cut)
	}
}

func TestConfirmWithoutWaiterIsDropped(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	if h.Confirm() {
		t.Fatalf("confirm reported a waiter on an idle table")
	}
}

func TestEndGameScoreboard(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	h.feed(protocol.UpdatePlayersChanged, protocol.PlayersChangedData{Players: roster(4, "A", "B")})
	h.feed(protocol.UpdateEndGame, protocol.EndGameData{Rounds: []protocol.Round{
		{Cutter: "A", WithCount: false, Scores: map[string]int{"A": 5, "B": 10}, Hands: map[string][]protocol.Card{"A": {hearts7}}},
		{Cutter: "B", WithCount: true, Declared: 2, Scores: map[string]int{"A": 3, "B": -10, "C": 1}},
	}})
	h.idle()

	sb, ok := h.rec.Scoreboard()
	if !ok {
		t.Fatalf("no scoreboard rendered")
	}
	if !slices.Equal(sb.Players, []string{"A", "B", "C"}) {
		t.Fatalf("players = %v", sb.Players)
	}
	if !slices.Equal(sb.Totals, []int{8, 0, 1}) {
		t.Fatalf("totals = %v", sb.Totals)
	}
	if sb.Rounds[0].Declared != "-" || sb.Rounds[1].Declared != "2" || sb.Rounds[0].Hands[0] != "7♥" {
		t.Fatalf("rounds = %+v", sb.Rounds)
	}
	if !h.rec.Hidden(render.Global(render.KindSurface)) {
		t.Fatalf("game surface still shown")
	}
	if h.Snapshot().Screen != "end" {
		t.Fatalf("screen = %s", h.Snapshot().Screen)
	}
}

func TestUnknownAndMalformedUpdatesAreDropped(t *testing.T) {
	h := newHarness(t, "A", fastConfig())
	if err := h.HandleEnvelope([]byte(`{"type":"bogus","data":{}}`)); !errors.Is(err, ErrUnknownUpdate) {
		t.Fatalf("unknown type: %v", err)
	}
	if err := h.HandleEnvelope([]byte(`{"type":"turn","data":{"player":7}}`)); err == nil {
		t.Fatalf("malformed data accepted")
	}
	if err := h.HandleEnvelope([]byte(`not json`)); err == nil {
		t.Fatalf("garbage accepted")
	}
	h.idle()
	if calls := h.rec.Calls(); len(calls) != 0 {
		t.Fatalf("dropped frames produced scenes: %v", calls)
	}
}

func rejoinSnapshot() protocol.RejoinData {
	src := protocol.DrawSourcePile
	last := protocol.Card{Suit: protocol.SuitDiamonds, Value: 9}
	return protocol.RejoinData{
		Players:          []protocol.Player{{ID: "A", CardsInHand: 3, Points: 4}, {ID: "B", CardsInHand: 5}},
		CurrentTurn:      "A",
		CardInHand:       true,
		CardInHandValue:  &hearts7,
		CardInHandSource: &src,
		LastDiscarded:    &last,
		CardsInDeck:      50,
		CardsInDrawPile:  30,
	}
}

func TestRejoinIsIdempotent(t *testing.T) {
	dirty := newHarness(t, "A", fastConfig())
	dirty.feed(protocol.UpdateGameConfig, protocol.GameConfigData{CardsInDeck: 54})
	dirty.feed(protocol.UpdateGameStart, protocol.StartRoundData{Players: roster(4, "A", "B", "C"), TopDiscard: hearts7})
	dirty.feed(protocol.UpdateTurn, protocol.TurnData{Player: "A"})
	dirty.feed(protocol.UpdateDraw, protocol.DrawUpdateData{Player: "A", Source: protocol.DrawSourcePile, Card: hearts7, Effect: protocol.EffectSwapCards})
	dirty.feed(protocol.UpdateError, protocol.ErrorData{Message: "slow down"})
	dirty.idle()
	if err := dirty.ArmSwap(); err != nil {
		t.Fatalf("arm swap: %v", err)
	}
	if err := dirty.ClickCard("B", 1); err != nil {
		t.Fatalf("seed swap: %v", err)
	}
	_ = dirty.SetCutInput(CutInput{WithCount: true, Declared: 9})

	fresh := newHarness(t, "A", fastConfig())
	for _, h := range []*harness{dirty, fresh} {
		h.feed(protocol.UpdateRejoin, rejoinSnapshot())
		h.idle()
	}

	a, b := dirty.Snapshot(), fresh.Snapshot()
	a.ConnID, b.ConnID = "", ""
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("rejoin depends on prior state:\ndirty %+v\nfresh %+v", a, b)
	}
	if a.Screen != "draw" || !slices.Equal(a.Controls, []string{"discard", "discard_two"}) {
		t.Fatalf("restored screen %s controls %v", a.Screen, a.Controls)
	}
	if a.FirstTurn || a.Mode != "discard" || a.SwapBuffer != nil {
		t.Fatalf("transient state survived: %+v", a)
	}
	if a.DiscardPile != 11 || a.DrawPile != 30 {
		t.Fatalf("piles draw=%d discard=%d", a.DrawPile, a.DiscardPile)
	}
	if got := fresh.rec.Face(render.Drawn("A")); got != "[7♥]" {
		t.Fatalf("drawn card not restored: %q", got)
	}
}

func TestRejoinWithoutDeckSizeForgetsPriorDeck(t *testing.T) {
	snap := rejoinSnapshot()
	snap.CardsInDeck = 0

	dirty := newHarness(t, "A", fastConfig())
	dirty.feed(protocol.UpdateGameConfig, protocol.GameConfigData{CardsInDeck: 54})
	fresh := newHarness(t, "A", fastConfig())
	for _, h := range []*harness{dirty, fresh} {
		h.feed(protocol.UpdateRejoin, snap)
		h.idle()
	}

	a, b := dirty.Snapshot(), fresh.Snapshot()
	a.ConnID, b.ConnID = "", ""
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("rejoin depends on prior deck size:\ndirty %+v\nfresh %+v", a, b)
	}
	if a.CardsInDeck != 0 || a.DiscardPile != 1 {
		t.Fatalf("deck=%d discard=%d", a.CardsInDeck, a.DiscardPile)
	}
}

func TestRejoinDuringFirstPeek(t *testing.T) {
	h := newHarness(t, "B", fastConfig())
	h.feed(protocol.UpdateRejoin, protocol.RejoinData{
		Players: []protocol.Player{
			{ID: "A", CardsInHand: 4},
			{ID: "B", CardsInHand: 4, PendingFirstPeek: true},
		},
		CurrentTurn: "A",
		CardsInDeck: 50,
	})
	h.idle()
	st := h.Snapshot()
	if st.Screen != "start" || !slices.Equal(st.Controls, []string{"first_peek"}) || !st.FirstTurn {
		t.Fatalf("state = %+v", st)
	}
	if !h.player("A").Ready || h.player("B").Ready {
		t.Fatalf("ready marks = %+v", st.Players)
	}
}

func TestSpeedToggleHalvesDurations(t *testing.T) {
	h := newHarness(t, "A", DefaultConfig())
	if d := h.dur(time.Second); d != time.Second {
		t.Fatalf("x1 = %s", d)
	}
	if s := h.ToggleSpeed(); s != 2 {
		t.Fatalf("speed = %d", s)
	}
	if d := h.dur(time.Second); d != 500*time.Millisecond {
		t.Fatalf("x2 = %s", d)
	}
	h.ToggleSpeed()
	if d := h.dur(time.Second); d != time.Second {
		t.Fatalf("back to x1 = %s", d)
	}
}
