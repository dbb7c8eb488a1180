package render

import (
	"fmt"
	"sync"
	"time"
)

// Recorder is a Renderer that keeps the resulting screen contents in memory
// and logs every call. Transitions complete immediately.
type Recorder struct {
	mu       sync.Mutex
	calls    []string
	seats    []Seat
	hands    map[string]int
	faces    map[Region]string
	hidden   map[Region]bool
	controls []string
	scores   *Scoreboard
}

func NewRecorder() *Recorder {
	return &Recorder{
		hands:  make(map[string]int),
		faces:  make(map[Region]string),
		hidden: make(map[Region]bool),
	}
}

func (r *Recorder) logf(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *Recorder) Layout(seats []Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seats = append([]Seat(nil), seats...)
	r.hands = make(map[string]int, len(seats))
	for _, s := range seats {
		r.hands[s.ID] = s.Cards
	}
	for reg := range r.faces {
		if reg.Player != "" {
			delete(r.faces, reg)
		}
	}
	r.logf("layout %d", len(seats))
}

func (r *Recorder) SetHand(player string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hands[player] = n
	r.logf("hand %s %d", player, n)
}

func (r *Recorder) Move(u Unit, to Region, d time.Duration) <-chan struct{} {
	r.mu.Lock()
	r.logf("move %s -> %s %s", u.At, to, d)
	if u.Face != "" {
		r.faces[to] = u.Face
	}
	r.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done
}

func (r *Recorder) Reveal(reg Region, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faces[reg] = text
	delete(r.hidden, reg)
	r.logf("reveal %s %q", reg, text)
}

func (r *Recorder) Show(reg Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hidden, reg)
	r.logf("show %s", reg)
}

func (r *Recorder) Hide(reg Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg.Kind == KindHand || reg.Kind == KindDrawn {
		delete(r.faces, reg)
	} else {
		r.hidden[reg] = true
	}
	r.logf("hide %s", reg)
}

func (r *Recorder) Controls(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = append([]string(nil), names...)
}

func (r *Recorder) Scores(sb Scoreboard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = &sb
	r.logf("scores %d rounds", len(sb.Rounds))
}

// Calls returns every recorded call in order.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *Recorder) Seats() []Seat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Seat(nil), r.seats...)
}

// HandSize is the number of slots shown for player.
func (r *Recorder) HandSize(player string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hands[player]
}

// Face returns the text shown face up at reg, "" if face down or empty.
func (r *Recorder) Face(reg Region) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.faces[reg]
}

func (r *Recorder) Hidden(reg Region) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden[reg]
}

func (r *Recorder) EnabledControls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.controls...)
}

func (r *Recorder) Scoreboard() (Scoreboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scores == nil {
		return Scoreboard{}, false
	}
	return *r.scores, true
}
