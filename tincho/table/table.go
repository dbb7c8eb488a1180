// Package table is the per-connection client session: it owns the player
// views, the screen state and the intent buffers, turns inbound updates
// into queued scenes and local gestures into outbound requests.
//
// Handlers commit their state in one critical section and then drive the
// renderer without holding the lock, so a click arriving mid-scene sees
// either the state before the update or the state after it.
package table

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/intent"
	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/queue"
	"github.com/gosuda/tincho-client/tincho/render"
	"github.com/gosuda/tincho-client/tincho/screen"
)

var (
	ErrUnknownUpdate   = errors.New("unknown update type")
	ErrControlDisabled = errors.New("control not enabled")
	ErrNotYourMove     = errors.New("not the local player's move")
	ErrNoSuchCard      = errors.New("no such card")
	ErrSlotMoving      = errors.New("card is being moved")
	ErrEmptyPile       = errors.New("pile is empty")
)

// Config holds the scene timings and display options. Durations are divided
// by Speed.
type Config struct {
	Animation     time.Duration
	SwapLeg       time.Duration
	PeekHide      time.Duration
	FirstPeekHide time.Duration
	FailedHold    time.Duration
	Speed         int
	Suits         protocol.SuitKind
}

func DefaultConfig() Config {
	return Config{
		Animation:     1000 * time.Millisecond,
		SwapLeg:       2000 * time.Millisecond,
		PeekHide:      10 * time.Second,
		FirstPeekHide: 3 * time.Second,
		FailedHold:    1000 * time.Millisecond,
		Speed:         1,
		Suits:         protocol.SuitsStandard,
	}
}

// Sender delivers an outbound request to the server.
type Sender interface {
	Send(req protocol.Request) error
}

// Drawn is the card waiting in a player's personal draw slot.
type Drawn struct {
	Card   protocol.Card       `json:"card"`
	Source protocol.DrawSource `json:"source"`
	Effect protocol.Effect     `json:"effect"`
}

// PlayerView is the displayed state of one roster entry.
type PlayerView struct {
	ID               string `json:"id"`
	Points           int    `json:"points"`
	Cards            int    `json:"cards"`
	Ready            bool   `json:"ready"`
	PendingFirstPeek bool   `json:"pendingFirstPeek"`
	Drawn            *Drawn `json:"drawn,omitempty"`
}

// CutInput is the local cut configuration, reset at every turn.
type CutInput struct {
	WithCount bool `json:"withCount"`
	Declared  int  `json:"declared"`
}

type Table struct {
	id    string
	local string
	cfg   Config
	r     render.Renderer
	out   Sender
	q     *queue.Queue
	gate  gate

	mu          sync.Mutex
	speed       int
	players     []*PlayerView
	byID        map[string]*PlayerView
	screen      *screen.Controller
	intent      *intent.Tracker
	turn        string
	cardsInDeck int
	drawPile    int
	discardPile int
	topDiscard  *protocol.Card
	cut         CutInput
	moving      map[render.Region]bool
	banner      string
	onLocalTurn func()
}

func New(cfg Config, local string, r render.Renderer, s Sender) *Table {
	if cfg.Speed < 1 {
		cfg.Speed = 1
	}
	if !protocol.ValidSuitKind(cfg.Suits) {
		cfg.Suits = protocol.SuitsStandard
	}
	return &Table{
		id:     uuid.NewString(),
		local:  local,
		cfg:    cfg,
		r:      r,
		out:    s,
		q:      queue.New(),
		speed:  cfg.Speed,
		byID:   make(map[string]*PlayerView),
		screen: screen.NewController(),
		intent: intent.NewTracker(local),
		moving: make(map[render.Region]bool),
	}
}

// ID identifies this session object in logs.
func (t *Table) ID() string    { return t.id }
func (t *Table) Local() string { return t.local }

// Play begins playing queued scenes until ctx is cancelled.
func (t *Table) Play(ctx context.Context) {
	t.q.Start(ctx)
	t.publish(t.controls())
}

// WaitIdle blocks until every queued scene has played.
func (t *Table) WaitIdle(ctx context.Context) error {
	return t.q.WaitIdle(ctx)
}

// OnLocalTurn registers fn to run when a turn starts for the local player.
func (t *Table) OnLocalTurn(fn func()) {
	t.mu.Lock()
	t.onLocalTurn = fn
	t.mu.Unlock()
}

// Banner shows a user-facing message, typically a transport error.
func (t *Table) Banner(msg string) {
	msg = render.Sanitize(msg)
	t.mu.Lock()
	t.banner = msg
	t.mu.Unlock()
	t.r.Reveal(render.Global(render.KindBanner), msg)
	t.r.Show(render.Global(render.KindBanner))
}

func (t *Table) dur(d time.Duration) time.Duration {
	t.mu.Lock()
	s := t.speed
	t.mu.Unlock()
	return d / time.Duration(s)
}

func (t *Table) face(c protocol.Card) string {
	return "[" + c.Face(t.cfg.Suits) + "]"
}

// State is a copy of everything a scene or gesture depends on.
type State struct {
	ConnID           string         `json:"connId"`
	Local            string         `json:"local"`
	Screen           screen.State   `json:"screen"`
	Controls         []string       `json:"controls"`
	FirstTurn        bool           `json:"firstTurn"`
	Mode             intent.Mode    `json:"mode"`
	SwapBuffer       *intent.Pick   `json:"swapBuffer,omitempty"`
	DiscardTwoBuffer *int           `json:"discardTwoBuffer,omitempty"`
	Players          []PlayerView   `json:"players"`
	Turn             string         `json:"turn"`
	CardsInDeck      int            `json:"cardsInDeck"`
	DrawPile         int            `json:"drawPile"`
	DiscardPile      int            `json:"discardPile"`
	TopDiscard       *protocol.Card `json:"topDiscard,omitempty"`
	Cut              CutInput       `json:"cut"`
	Speed            int            `json:"speed"`
	Banner           string         `json:"banner,omitempty"`
	Queued           int            `json:"queued"`
}

func (t *Table) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := State{
		ConnID:      t.id,
		Local:       t.local,
		Screen:      t.screen.State(),
		Controls:    t.screen.Enabled().Names(),
		FirstTurn:   t.screen.FirstTurn(),
		Mode:        t.intent.Mode(),
		Players:     make([]PlayerView, 0, len(t.players)),
		Turn:        t.turn,
		CardsInDeck: t.cardsInDeck,
		DrawPile:    t.drawPile,
		DiscardPile: t.discardPile,
		Cut:         t.cut,
		Speed:       t.speed,
		Banner:      t.banner,
		Queued:      t.q.Len(),
	}
	if p, ok := t.intent.SwapBuffer(); ok {
		st.SwapBuffer = &p
	}
	if pos, ok := t.intent.DiscardTwoBuffer(); ok {
		st.DiscardTwoBuffer = &pos
	}
	for _, pv := range t.players {
		cp := *pv
		if pv.Drawn != nil {
			d := *pv.Drawn
			cp.Drawn = &d
		}
		st.Players = append(st.Players, cp)
	}
	if t.topDiscard != nil {
		c := *t.topDiscard
		st.TopDiscard = &c
	}
	return st
}

// replacePlayersLocked rebuilds every player view from a roster. Ready marks
// only exist before the first turn of a round, where they mean "has peeked".
func (t *Table) replacePlayersLocked(roster []protocol.Player) {
	peekPhase := t.screen.FirstTurn() && isStartState(t.screen.State())
	t.players = make([]*PlayerView, 0, len(roster))
	t.byID = make(map[string]*PlayerView, len(roster))
	for _, p := range roster {
		pv := &PlayerView{
			ID:               p.ID,
			Points:           p.Points,
			Cards:            p.CardsInHand,
			PendingFirstPeek: p.PendingFirstPeek,
			Ready:            peekPhase && !p.PendingFirstPeek,
		}
		t.players = append(t.players, pv)
		t.byID[p.ID] = pv
	}
	t.moving = make(map[render.Region]bool)
}

func isStartState(s screen.State) bool {
	return s == screen.StateStart || s == screen.StateStartRound || s == screen.StatePeeked
}

func (t *Table) seatsLocked() []render.Seat {
	seats := make([]render.Seat, 0, len(t.players))
	for _, pv := range t.players {
		seats = append(seats, render.Seat{
			ID:     pv.ID,
			Points: pv.Points,
			Cards:  pv.Cards,
			Ready:  pv.Ready,
			Local:  pv.ID == t.local,
		})
	}
	return seats
}

// resetPilesLocked sets the counters for a freshly dealt round: four cards
// per player and one face up on the discard pile.
func (t *Table) resetPilesLocked(players int, top protocol.Card) {
	t.drawPile = max(t.cardsInDeck-1-4*players, 0)
	t.discardPile = 1
	t.topDiscard = &top
}

func (t *Table) cyclePilesLocked() {
	t.drawPile = max(t.discardPile-1, 0)
	t.discardPile = 1
}

type piles struct {
	draw, discard string
}

func (t *Table) pilesLocked() piles {
	var p piles
	if t.drawPile > 0 {
		p.draw = "[ ] " + strconv.Itoa(t.drawPile)
	}
	if t.discardPile > 0 {
		top := "[ ]"
		if t.topDiscard != nil {
			top = t.face(*t.topDiscard)
		}
		p.discard = top + " " + strconv.Itoa(t.discardPile)
	}
	return p
}

func (t *Table) drawPiles(p piles) {
	t.r.Reveal(render.Global(render.KindDrawPile), p.draw)
	t.r.Reveal(render.Global(render.KindDiscard), p.discard)
}

func (t *Table) controls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.screen.Enabled().Names()
}

func (t *Table) publish(names []string) {
	t.r.Controls(names)
}

func (t *Table) send(req protocol.Request) error {
	if err := t.out.Send(req); err != nil {
		log.Warn().Err(err).Str("action", string(req.Type)).Msg("[table] send failed")
		return err
	}
	log.Debug().Str("action", string(req.Type)).Str("conn", t.id).Msg("[table] sent")
	return nil
}

// await blocks until a transition completes or ctx ends.
func await(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
