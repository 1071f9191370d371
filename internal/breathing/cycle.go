// Package breathing drives the fixed four-phase breathing pace.
package breathing

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/observability"
)

// Phase of the breathing cycle.
type Phase int

const (
	Idle Phase = iota
	Inhale
	Hold
	Exhale
	Pause
)

// DefaultPhaseDuration is the length of every phase.
const DefaultPhaseDuration = 4 * time.Second

// IdleLabel is shown while the cycle is inactive.
const IdleLabel = "Ready?"

func (p Phase) String() string {
	switch p {
	case Inhale:
		return "Inhale"
	case Hold:
		return "Hold"
	case Exhale:
		return "Exhale"
	case Pause:
		return "Pause"
	}
	return "Idle"
}

// Label is the text displayed for the phase.
func (p Phase) Label() string {
	if p == Idle {
		return IdleLabel
	}
	return p.String()
}

func (p Phase) next() Phase {
	if p == Pause || p == Idle {
		return Inhale
	}
	return p + 1
}

// Update is published on every phase change.
type Update struct {
	Phase   string `json:"phase"`
	Label   string `json:"label"`
	Seconds int    `json:"seconds"`
	Active  bool   `json:"active"`
}

// Cycle runs Inhale -> Hold -> Exhale -> Pause repeatedly while active.
type Cycle struct {
	phaseDuration time.Duration
	logger        zerolog.Logger

	mu         sync.Mutex
	phase      Phase
	active     bool
	generation uint64
	cancel     context.CancelFunc
	subs       map[int]chan Update
	nextSub    int
}

// NewCycle creates an idle cycle. A non-positive duration selects DefaultPhaseDuration.
func NewCycle(phaseDuration time.Duration, logger zerolog.Logger) *Cycle {
	if phaseDuration <= 0 {
		phaseDuration = DefaultPhaseDuration
	}
	return &Cycle{
		phaseDuration: phaseDuration,
		logger:        logger.With().Str("component", "breathing").Logger(),
		subs:          make(map[int]chan Update),
	}
}

// Start begins the cycle at Inhale and returns the run's generation for
// StopIfCurrent. It reports false if the cycle was already active.
// The cycle stops on its own when ctx is done.
func (c *Cycle) Start(ctx context.Context) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return 0, false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.generation++
	c.cancel = cancel
	c.active = true
	c.setPhaseLocked(Inhale)

	go c.run(ctx, c.generation)
	c.logger.Debug().Dur("phase_duration", c.phaseDuration).Msg("Breathing cycle started")
	return c.generation, true
}

// Stop halts transitions and resets to the idle label. Stopping an idle cycle is a no-op.
func (c *Cycle) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked(c.generation)
}

// StopIfCurrent stops the cycle only while gen is still the running
// generation. It reports whether it stopped anything.
func (c *Cycle) StopIfCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(gen)
}

// Phase returns the current phase.
func (c *Cycle) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Active reports whether the cycle is running.
func (c *Cycle) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Current returns the state as an Update.
func (c *Cycle) Current() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked()
}

// Subscribe returns a channel of phase updates and a function that releases it.
// Slow subscribers miss updates rather than blocking the cycle.
func (c *Cycle) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Update, 8)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Cycle) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.phaseDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.stopLocked(gen)
			c.mu.Unlock()
			return
		case <-ticker.C:
			c.mu.Lock()
			if gen != c.generation || !c.active {
				c.mu.Unlock()
				return
			}
			c.setPhaseLocked(c.phase.next())
			c.mu.Unlock()
		}
	}
}

func (c *Cycle) stopLocked(gen uint64) bool {
	if !c.active || gen != c.generation {
		return false
	}
	c.cancel()
	c.cancel = nil
	c.active = false
	c.generation++
	c.setPhaseLocked(Idle)
	c.logger.Debug().Msg("Breathing cycle stopped")
	return true
}

func (c *Cycle) setPhaseLocked(p Phase) {
	c.phase = p
	if p != Idle {
		observability.RecordBreathingPhase(p.String())
	}

	u := c.updateLocked()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

func (c *Cycle) updateLocked() Update {
	u := Update{
		Phase:  c.phase.String(),
		Label:  c.phase.Label(),
		Active: c.active,
	}
	if c.active {
		u.Seconds = int(c.phaseDuration.Round(time.Second) / time.Second)
	}
	return u
}
