// Package term draws the table on a terminal with tcell and maps keys and
// mouse clicks to table gestures.
package term

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/gosuda/tincho-client/tincho/render"
)

const (
	frameInterval = 33 * time.Millisecond

	nameCol   = 2
	handCol   = 22
	slotWidth = 6
	maxSlots  = 8
	drawnCol  = handCol + slotWidth*maxSlots + 2
	pileRow   = 2
	seatRow   = 5
	seatStep  = 2
)

var (
	styleText    = tcell.StyleDefault
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleLocal   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleCard    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleFlying  = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleBanner  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleButton  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleCursor  = tcell.StyleDefault.Reverse(true)
	styleHeading = tcell.StyleDefault.Underline(true)
)

type anim struct {
	face     string
	from, to point
	start    time.Time
	d        time.Duration
	done     chan struct{}
}

type point struct{ x, y int }

// hit is a clickable span on one row.
type hit struct {
	x0, x1, y int
	region    render.Region
	button    string
	room      int
}

// Renderer implements render.Renderer on a tcell screen. Every method is
// safe for concurrent use; transitions advance on the Run loop.
type Renderer struct {
	scr tcell.Screen

	mu       sync.Mutex
	seats    []render.Seat
	hands    map[string]int
	faces    map[render.Region]string
	ready    map[string]bool
	visible  map[render.Kind]bool
	texts    map[render.Kind]string
	controls []string
	cutLabel string
	scores   *render.Scoreboard
	rooms    []string
	roomSel  int
	cursor   cursor
	anims    []*anim
	hits     []hit
	stopped  bool
}

type cursor struct {
	seat, slot int
}

func New(scr tcell.Screen) *Renderer {
	return &Renderer{
		scr:     scr,
		hands:   make(map[string]int),
		faces:   make(map[render.Region]string),
		ready:   make(map[string]bool),
		visible: map[render.Kind]bool{render.KindSurface: true},
		texts:   make(map[render.Kind]string),
	}
}

// Run redraws at a fixed frame rate and completes transitions until ctx
// ends. Pending transitions are completed on exit.
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.stopped = true
			for _, a := range r.anims {
				close(a.done)
			}
			r.anims = nil
			r.mu.Unlock()
			return
		case now := <-ticker.C:
			r.frame(now)
		}
	}
}

func (r *Renderer) frame(now time.Time) {
	r.mu.Lock()
	kept := r.anims[:0]
	for _, a := range r.anims {
		if now.Sub(a.start) >= a.d {
			close(a.done)
			continue
		}
		kept = append(kept, a)
	}
	r.anims = kept
	r.drawLocked(now)
	r.mu.Unlock()
	r.scr.Show()
}

// Redraw paints the current state immediately.
func (r *Renderer) Redraw() {
	r.mu.Lock()
	r.drawLocked(time.Now())
	r.mu.Unlock()
	r.scr.Show()
}

func (r *Renderer) Layout(seats []render.Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats = append([]render.Seat(nil), seats...)
	r.hands = make(map[string]int, len(seats))
	r.ready = make(map[string]bool, len(seats))
	for _, s := range seats {
		r.hands[s.ID] = s.Cards
		r.ready[s.ID] = s.Ready
	}
	for reg := range r.faces {
		if reg.Player != "" {
			delete(r.faces, reg)
		}
	}
	if r.cursor.seat >= len(seats) {
		r.cursor = cursor{}
	}
}

func (r *Renderer) SetHand(player string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hands[player] = n
	for reg := range r.faces {
		if reg.Kind == render.KindHand && reg.Player == player && reg.Slot >= n {
			delete(r.faces, reg)
		}
	}
}

func (r *Renderer) Move(u render.Unit, to render.Region, d time.Duration) <-chan struct{} {
	done := make(chan struct{})
	r.mu.Lock()
	defer r.mu.Unlock()
	from, ok1 := r.posLocked(u.At)
	dst, ok2 := r.posLocked(to)
	if d <= 0 || r.stopped || !ok1 || !ok2 {
		close(done)
		return done
	}
	face := u.Face
	if face == "" {
		face = "[ ]"
	}
	r.anims = append(r.anims, &anim{face: face, from: from, to: dst, start: time.Now(), d: d, done: done})
	return done
}

func (r *Renderer) Reveal(reg render.Region, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch reg.Kind {
	case render.KindHand, render.KindDrawn:
		r.faces[reg] = text
	default:
		r.texts[reg.Kind] = text
	}
}

func (r *Renderer) Show(reg render.Region) {
	r.setVisible(reg, true)
}

func (r *Renderer) Hide(reg render.Region) {
	r.setVisible(reg, false)
}

func (r *Renderer) setVisible(reg render.Region, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch reg.Kind {
	case render.KindHand, render.KindDrawn:
		if !on {
			delete(r.faces, reg)
		}
	case render.KindReady:
		r.ready[reg.Player] = on
	default:
		r.visible[reg.Kind] = on
	}
}

func (r *Renderer) Controls(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = append([]string(nil), names...)
}

func (r *Renderer) Scores(sb render.Scoreboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = &sb
}

// SetCutLabel shows the pending cut configuration next to the cut button.
func (r *Renderer) SetCutLabel(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutLabel = s
}

// SetRooms replaces the room selection list.
func (r *Renderer) SetRooms(lines []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = make([]string, 0, len(lines))
	for _, l := range lines {
		r.rooms = append(r.rooms, render.Sanitize(l))
	}
	if r.roomSel >= len(r.rooms) {
		r.roomSel = 0
	}
}

func (r *Renderer) enabled(name string) bool {
	for _, c := range r.controls {
		if c == name {
			return true
		}
	}
	return false
}

func (r *Renderer) seatRowLocked(player string) (int, bool) {
	for i, s := range r.seats {
		if s.ID == player {
			return seatRow + i*seatStep, true
		}
	}
	return 0, false
}

// posLocked maps a region to its top-left cell.
func (r *Renderer) posLocked(reg render.Region) (point, bool) {
	switch reg.Kind {
	case render.KindDrawPile:
		return point{nameCol, pileRow}, true
	case render.KindDiscard:
		return point{handCol, pileRow}, true
	case render.KindHand:
		y, ok := r.seatRowLocked(reg.Player)
		return point{handCol + reg.Slot*slotWidth, y}, ok
	case render.KindDrawn:
		y, ok := r.seatRowLocked(reg.Player)
		return point{drawnCol, y}, ok
	case render.KindName, render.KindScore, render.KindReady:
		y, ok := r.seatRowLocked(reg.Player)
		return point{nameCol, y}, ok
	}
	return point{}, false
}

func (r *Renderer) put(x, y int, style tcell.Style, s string) int {
	for _, c := range s {
		r.scr.SetContent(x, y, c, nil, style)
		x++
	}
	return x
}

func (r *Renderer) drawLocked(now time.Time) {
	r.scr.Clear()
	r.hits = r.hits[:0]
	if r.visible[render.KindBanner] && r.texts[render.KindBanner] != "" {
		r.put(nameCol, 0, styleBanner, r.texts[render.KindBanner])
	}
	switch {
	case r.visible[render.KindRoomList]:
		r.drawRoomsLocked()
	case r.visible[render.KindScoreGrid] && r.scores != nil:
		r.drawScoresLocked()
	case r.visible[render.KindSurface]:
		r.drawSurfaceLocked(now)
	}
	r.drawControlsLocked()
}

func (r *Renderer) drawSurfaceLocked(now time.Time) {
	if t := r.texts[render.KindDrawPile]; t != "" {
		r.put(nameCol, pileRow, styleCard, t)
	}
	if t := r.texts[render.KindDiscard]; t != "" {
		r.put(handCol, pileRow, styleCard, t)
	}
	for i, s := range r.seats {
		y := seatRow + i*seatStep
		style := styleText
		if s.Local {
			style = styleLocal
		}
		label := render.Sanitize(s.ID) + " (" + strconv.Itoa(s.Points) + ")"
		if r.ready[s.ID] {
			label += " ✓"
		}
		r.put(nameCol, y, style, label)
		for slot := 0; slot < r.hands[s.ID]; slot++ {
			reg := render.Hand(s.ID, slot)
			face, ok := r.faces[reg]
			if !ok {
				face = "[ ]"
			}
			x := handCol + slot*slotWidth
			cs := styleCard
			if r.cursor.seat == i && r.cursor.slot == slot {
				cs = styleCursor
			}
			end := r.put(x, y, cs, face)
			r.hits = append(r.hits, hit{x0: x, x1: end, y: y, region: reg})
		}
		if face, ok := r.faces[render.Drawn(s.ID)]; ok {
			r.put(drawnCol, y, styleCard, face)
		}
	}
	if r.visible[render.KindCutInfo] {
		y := seatRow + len(r.seats)*seatStep + 1
		r.put(nameCol, y, styleBanner, r.texts[render.KindCutInfo])
	}
	for _, a := range r.anims {
		p := float64(now.Sub(a.start)) / float64(a.d)
		if p > 1 {
			p = 1
		}
		x := a.from.x + int(float64(a.to.x-a.from.x)*p)
		y := a.from.y + int(float64(a.to.y-a.from.y)*p)
		r.put(x, y, styleFlying, a.face)
	}
}

func (r *Renderer) drawScoresLocked() {
	sb := r.scores
	const col = 10
	y := pileRow
	r.put(nameCol, y, styleHeading, "Final scores")
	y += 2
	r.put(nameCol, y, styleHeading, "Round")
	for i, p := range sb.Players {
		r.put(nameCol+col*(i+1), y, styleHeading, p)
	}
	r.put(nameCol+col*(len(sb.Players)+1), y, styleHeading, "Cut / declared")
	for ri, round := range sb.Rounds {
		y++
		r.put(nameCol, y, styleText, strconv.Itoa(ri+1))
		for i, s := range round.Scores {
			r.put(nameCol+col*(i+1), y, styleText, strconv.Itoa(s))
		}
		r.put(nameCol+col*(len(sb.Players)+1), y, styleDim, round.Cutter+" / "+round.Declared)
	}
	y += 2
	r.put(nameCol, y, styleLocal, "Total")
	for i, s := range sb.Totals {
		r.put(nameCol+col*(i+1), y, styleLocal, strconv.Itoa(s))
	}
}

func (r *Renderer) drawRoomsLocked() {
	y := pileRow
	r.put(nameCol, y, styleHeading, "Rooms (enter to join, n for a new room, r to resume)")
	if len(r.rooms) == 0 {
		r.put(nameCol, y+2, styleDim, "no open rooms")
	}
	for i, line := range r.rooms {
		style := styleText
		if i == r.roomSel {
			style = styleCursor
		}
		end := r.put(nameCol, y+2+i, style, line)
		r.hits = append(r.hits, hit{x0: nameCol, x1: end, y: y + 2 + i, room: i + 1})
	}
}

func (r *Renderer) drawControlsLocked() {
	_, h := r.scr.Size()
	y := h - 2
	x := nameCol
	for _, b := range buttons {
		style := styleDim
		if r.enabled(b.control) {
			style = styleButton
		}
		label := b.label
		if b.control == "cut" && r.cutLabel != "" {
			label += " " + r.cutLabel
		}
		end := r.put(x, y, style, "["+label+"]")
		r.hits = append(r.hits, hit{x0: x, x1: end, y: y, button: b.control})
		x = end + 1
	}
}
