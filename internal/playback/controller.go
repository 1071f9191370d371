// Package playback owns the single audio output handle used for narration.
package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/meditateology/guide/internal/audio"
	"github.com/meditateology/guide/internal/observability"
)

// State of the playback controller.
type State int

const (
	Idle State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	}
	return "unknown"
}

var (
	// ErrStaleTicket is returned by Play when the load it belongs to was superseded.
	ErrStaleTicket = errors.New("playback ticket superseded")
	// ErrClosed is returned once the controller has been torn down.
	ErrClosed = errors.New("playback controller closed")
)

// Ticket identifies one Load. Zero is never issued.
type Ticket uint64

// Controller is the Idle -> Loading -> Playing -> Idle state machine that
// guarantees at most one live Handle against its Sink.
type Controller struct {
	sink   Sink
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	current    Handle
	handleID   uint64
	generation uint64
	ticket     Ticket
	buffer     *audio.Buffer
	closed     bool
}

// NewController creates a controller playing through sink.
func NewController(sink Sink, logger zerolog.Logger) *Controller {
	return &Controller{
		sink:   sink,
		logger: logger.With().Str("component", "playback").Logger(),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPlaying reports whether a handle is live.
func (c *Controller) IsPlaying() bool {
	return c.State() == Playing
}

// Buffer returns the buffer most recently started. It survives natural
// completion and is released by the next Load or Start, or by stopping
// live playback.
func (c *Controller) Buffer() *audio.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

// Load releases any live handle and enters Loading. The returned ticket must be
// presented to Play; any later Load, Start, Stop or Interrupt invalidates it.
func (c *Controller) Load() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}
	c.releaseLocked("stop")
	c.generation++
	c.ticket = Ticket(c.generation)
	c.state = Loading
	observability.RecordPlaybackTransition("load")
	return c.ticket
}

// Abort returns a Loading controller to Idle if ticket is still current.
func (c *Controller) Abort(ticket Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ticket == 0 || ticket != c.ticket || c.state != Loading {
		return
	}
	c.ticket = 0
	c.state = Idle
}

// Play starts payload if ticket still names the pending load.
func (c *Controller) Play(ticket Ticket, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if ticket == 0 || ticket != c.ticket || c.state != Loading {
		return ErrStaleTicket
	}
	return c.startLocked(payload)
}

// Start force-stops any live handle, decodes payload and begins playback.
// On failure the controller is left Idle with no handle retained.
func (c *Controller) Start(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.startLocked(payload)
}

// Stop halts and releases the live handle. Calling it while Idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return
	}
	c.releaseLocked("stop")
	c.generation++
	c.ticket = 0
	c.state = Idle
}

// Interrupt flushes whatever is queued or playing back to Idle, as a barge-in
// would. It reports whether anything was flushed.
func (c *Controller) Interrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		return false
	}
	c.releaseLocked("interrupt")
	c.generation++
	c.ticket = 0
	c.state = Idle
	return true
}

// Close stops playback and refuses further starts. Used on teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked("stop")
	c.generation++
	c.ticket = 0
	c.state = Idle
	c.closed = true
}

func (c *Controller) startLocked(payload string) error {
	c.releaseLocked("stop")
	c.generation++
	c.ticket = 0
	c.state = Idle

	buf, err := audio.DecodeBase64PCM16(payload)
	observability.RecordDecode(buf.Len(), err)
	if err != nil {
		c.logger.Error().Err(err).Int("payload_len", len(payload)).Msg("Failed to decode narration audio")
		observability.RecordPlaybackTransition("failed")
		return err
	}

	c.handleID++
	id := c.handleID
	handle, err := c.acquire(buf, func() { c.complete(id) })
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to acquire audio output")
		observability.RecordError("output_unavailable", "playback")
		observability.RecordPlaybackTransition("failed")
		return err
	}

	c.current = handle
	c.buffer = buf
	c.state = Playing
	observability.RecordPlaybackTransition("start")
	c.logger.Debug().
		Int("samples", buf.Len()).
		Dur("duration", buf.Duration()).
		Msg("Narration playback started")
	return nil
}

// acquire converts a panicking sink into an error so the host never crashes.
func (c *Controller) acquire(buf *audio.Buffer, onDone func()) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("audio output panicked: %v", r)
		}
	}()
	h, err = c.sink.Play(buf, onDone)
	if err == nil && h == nil {
		err = errors.New("audio output returned no handle")
	}
	return h, err
}

func (c *Controller) complete(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.handleID != id {
		return
	}
	c.current = nil
	c.state = Idle
	observability.RecordPlaybackTransition("complete")
	c.logger.Debug().Msg("Narration playback finished")
}

func (c *Controller) releaseLocked(kind string) {
	c.buffer = nil
	if c.current == nil {
		return
	}
	c.current.Stop()
	c.current = nil
	c.buffer = nil
	observability.RecordPlaybackTransition(kind)
}
