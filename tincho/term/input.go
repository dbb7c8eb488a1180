package term

import (
	"context"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/render"
	"github.com/gosuda/tincho-client/tincho/table"
)

// Gestures is the part of the table the keyboard and mouse drive.
type Gestures interface {
	Start() error
	FirstPeek() error
	Draw(source protocol.DrawSource) error
	SetCutInput(in table.CutInput) error
	CutInput() table.CutInput
	Cut(withCount bool, declared int) error
	DiscardDrawn() error
	ArmDiscardTwo() error
	CancelDiscardTwo() error
	ArmSwap() error
	ArmPeekOwn() error
	ArmPeekOther() error
	ToggleSpeed() int
	Confirm() bool
	ClickCard(player string, pos int) error
}

// Handlers receives input. Game returns the table of the live connection,
// or nil while no room is joined.
type Handlers struct {
	Game      func() Gestures
	JoinRoom  func(index int)
	NewRoom   func()
	Reconnect func()
	Quit      func()
}

func (h *Handlers) game() Gestures {
	if h.Game == nil {
		return nil
	}
	return h.Game()
}

type button struct {
	control string
	label   string
	key     rune
}

// buttons in display order. Labels carry the key that presses them.
var buttons = []button{
	{"start", "s:start", 's'},
	{"first_peek", "f:peek 2", 'f'},
	{"draw", "d:draw (D: discard pile)", 'd'},
	{"cut", "c:cut", 'c'},
	{"discard", "x:discard drawn", 'x'},
	{"discard_two", "2:discard two", '2'},
	{"cancel_discard_two", "2:cancel", '2'},
	{"swap", "w:swap", 'w'},
	{"peek_own", "o:peek own", 'o'},
	{"peek_other", "p:peek other", 'p'},
	{"confirm", "enter:ok", '\r'},
}

// Input reads terminal events until ctx ends or the screen is finalized.
func (r *Renderer) Input(ctx context.Context, h *Handlers) {
	for ctx.Err() == nil {
		ev := r.scr.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			r.handleKey(h, ev.Key(), ev.Rune())
		case *tcell.EventMouse:
			if ev.Buttons()&tcell.Button1 != 0 {
				x, y := ev.Position()
				r.handleClick(h, x, y)
			}
		case *tcell.EventResize:
			r.scr.Sync()
		}
		r.Redraw()
	}
}

func (r *Renderer) roomMode() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible[render.KindRoomList]
}

func (r *Renderer) handleKey(h *Handlers, key tcell.Key, ch rune) {
	switch key {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		if h.Quit != nil {
			h.Quit()
		}
		return
	}
	if r.roomMode() {
		r.roomKey(h, key, ch)
		return
	}
	g := h.game()
	if g == nil {
		return
	}
	switch key {
	case tcell.KeyEnter:
		g.Confirm()
		return
	case tcell.KeyLeft, tcell.KeyRight, tcell.KeyUp, tcell.KeyDown:
		r.moveCursor(key)
		return
	case tcell.KeyRune:
	default:
		return
	}

	var err error
	switch ch {
	case 'q':
		if h.Quit != nil {
			h.Quit()
		}
	case 's':
		err = g.Start()
	case 'f':
		err = g.FirstPeek()
	case 'd':
		err = g.Draw(protocol.DrawSourcePile)
	case 'D':
		err = g.Draw(protocol.DrawSourceDiscard)
	case 'c':
		in := g.CutInput()
		err = g.Cut(in.WithCount, in.Declared)
	case 't':
		in := g.CutInput()
		in.WithCount = !in.WithCount
		err = r.setCut(g, in)
	case '+', '=':
		in := g.CutInput()
		in.Declared++
		err = r.setCut(g, in)
	case '-':
		in := g.CutInput()
		if in.Declared > 0 {
			in.Declared--
		}
		err = r.setCut(g, in)
	case 'x':
		err = g.DiscardDrawn()
	case '2':
		r.mu.Lock()
		cancel := r.enabled("cancel_discard_two")
		r.mu.Unlock()
		if cancel {
			err = g.CancelDiscardTwo()
		} else {
			err = g.ArmDiscardTwo()
		}
	case 'w':
		err = g.ArmSwap()
	case 'o':
		err = g.ArmPeekOwn()
	case 'p':
		err = g.ArmPeekOther()
	case 'v':
		speed := g.ToggleSpeed()
		log.Debug().Int("speed", speed).Msg("[term] speed")
	case ' ':
		if player, slot, ok := r.cursorCard(); ok {
			err = g.ClickCard(player, slot)
		}
	}
	if err != nil {
		log.Debug().Err(err).Str("key", string(ch)).Msg("[term] gesture rejected")
	}
}

func (r *Renderer) setCut(g Gestures, in table.CutInput) error {
	if err := g.SetCutInput(in); err != nil {
		return err
	}
	label := "(no count)"
	if in.WithCount {
		label = "(declare " + strconv.Itoa(in.Declared) + ")"
	}
	r.SetCutLabel(label)
	return nil
}

func (r *Renderer) roomKey(h *Handlers, key tcell.Key, ch rune) {
	r.mu.Lock()
	n := len(r.rooms)
	switch key {
	case tcell.KeyUp:
		if r.roomSel > 0 {
			r.roomSel--
		}
	case tcell.KeyDown:
		if r.roomSel < n-1 {
			r.roomSel++
		}
	}
	sel := r.roomSel
	r.mu.Unlock()

	switch {
	case key == tcell.KeyEnter && n > 0 && h.JoinRoom != nil:
		h.JoinRoom(sel)
	case key == tcell.KeyRune && ch == 'n' && h.NewRoom != nil:
		h.NewRoom()
	case key == tcell.KeyRune && ch == 'r' && h.Reconnect != nil:
		h.Reconnect()
	case key == tcell.KeyRune && ch == 'q' && h.Quit != nil:
		h.Quit()
	}
}

func (r *Renderer) moveCursor(key tcell.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seats) == 0 {
		return
	}
	c := r.cursor
	switch key {
	case tcell.KeyUp:
		c.seat = (c.seat + len(r.seats) - 1) % len(r.seats)
	case tcell.KeyDown:
		c.seat = (c.seat + 1) % len(r.seats)
	case tcell.KeyLeft:
		c.slot--
	case tcell.KeyRight:
		c.slot++
	}
	n := r.hands[r.seats[c.seat].ID]
	c.slot = max(min(c.slot, n-1), 0)
	r.cursor = c
}

func (r *Renderer) cursorCard() (string, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor.seat >= len(r.seats) {
		return "", 0, false
	}
	id := r.seats[r.cursor.seat].ID
	if r.cursor.slot >= r.hands[id] {
		return "", 0, false
	}
	return id, r.cursor.slot, true
}

func (r *Renderer) hitAt(x, y int) (hit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hits {
		if y == h.y && x >= h.x0 && x < h.x1 {
			return h, true
		}
	}
	return hit{}, false
}

func (r *Renderer) handleClick(h *Handlers, x, y int) {
	target, ok := r.hitAt(x, y)
	if !ok {
		return
	}
	if target.room > 0 {
		r.mu.Lock()
		r.roomSel = target.room - 1
		r.mu.Unlock()
		if h.JoinRoom != nil {
			h.JoinRoom(target.room - 1)
		}
		return
	}
	g := h.game()
	if g == nil {
		return
	}
	if target.button != "" {
		for _, b := range buttons {
			if b.control == target.button {
				key := tcell.KeyRune
				if b.key == '\r' {
					key = tcell.KeyEnter
				}
				r.handleKey(h, key, b.key)
				return
			}
		}
		return
	}
	if err := g.ClickCard(target.region.Player, target.region.Slot); err != nil {
		log.Debug().Err(err).Str("card", target.region.String()).Msg("[term] click rejected")
	}
}
