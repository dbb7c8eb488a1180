// Package audio plays the short cue that announces the local player's turn.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog/log"
)

const sampleRate = beep.SampleRate(44100)

// Chimer owns the speaker. Every method is safe to call before Initialize
// or after it failed; nothing is played then.
type Chimer struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

func NewChimer() *Chimer {
	return &Chimer{mixer: &beep.Mixer{}}
}

func (c *Chimer) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(c.mixer)
	c.initialized = true
	return nil
}

// Turn plays the two-note turn cue.
func (c *Chimer) Turn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	tick, err := generators.SineTone(sampleRate, 880)
	if err != nil {
		log.Debug().Err(err).Msg("[audio] tone")
		return
	}
	speaker.Lock()
	c.mixer.Add(beep.Seq(
		beep.Take(sampleRate.N(60*time.Millisecond), tick),
		NewBell(sampleRate, 1320, 220*time.Millisecond),
	))
	speaker.Unlock()
	log.Debug().Msg("[audio] turn chime")
}

func (c *Chimer) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	speaker.Clear()
	c.initialized = false
}

// Bell is a sine tone with an exponential decay. It ends after its length.
type Bell struct {
	sr    beep.SampleRate
	freq  float64
	pos   int
	total int
}

func NewBell(sr beep.SampleRate, freq float64, length time.Duration) *Bell {
	return &Bell{sr: sr, freq: freq, total: sr.N(length)}
}

func (b *Bell) Stream(samples [][2]float64) (n int, ok bool) {
	if b.pos >= b.total {
		return 0, false
	}
	for i := range samples {
		if b.pos >= b.total {
			return i, true
		}
		t := float64(b.pos) / float64(b.sr)
		progress := float64(b.pos) / float64(b.total)
		v := 0.2 * math.Exp(-4*progress) * math.Sin(2*math.Pi*b.freq*t)
		samples[i][0] = v
		samples[i][1] = v
		b.pos++
	}
	return len(samples), true
}

func (b *Bell) Err() error { return nil }
