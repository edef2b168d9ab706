package player

import (
	"errors"
	"log/slog"
	"math"
)

var (
	ErrNoSource     = errors.New("media source has no video url")
	ErrAlreadyBound = errors.New("controller already bound to a media element")
	ErrClosed       = errors.New("controller closed")
)

// MediaSource is the media a controller plays. It is immutable once bound.
type MediaSource struct {
	VideoURL     string
	ThumbnailURL string
}

// PlaybackState is the transport state reflected in a control surface.
type PlaybackState struct {
	IsPlaying       bool
	VolumeLevel     float64
	IsMuted         bool
	ProgressPercent float64
}

// EffectiveVolume is the level the element is actually playing at. While
// muted, VolumeLevel holds the level restored on unmute.
func (s PlaybackState) EffectiveVolume() float64 {
	if s.IsMuted {
		return 0
	}
	return s.VolumeLevel
}

// Element is the playable media surface a controller drives.
type Element interface {
	Play() error
	Pause() error
	CurrentTime() float64
	Duration() float64
	Seek(seconds float64) error
	SetVolume(level float64) error
}

// TimeUpdate is a timing notification emitted by an element.
type TimeUpdate struct {
	CurrentTime float64
	Duration    float64
}

// ChangeKind names a transport change made on the element itself, such as
// pausing from the player window.
type ChangeKind int

const (
	ChangePlaying ChangeKind = iota + 1
	ChangeVolume
)

// ElementChange reports the element's own playing flag or volume level.
type ElementChange struct {
	Kind    ChangeKind
	Playing bool
	Volume  float64
}

// Controller owns the playback state of a single media element.
// It is not safe for concurrent use; one event loop must drive it.
type Controller struct {
	logger  *slog.Logger
	source  MediaSource
	element Element
	state   PlaybackState
	closed  bool
}

func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger: logger,
		state:  PlaybackState{VolumeLevel: 1},
	}
}

func (c *Controller) Bind(src MediaSource, el Element) error {
	if c.closed {
		return ErrClosed
	}
	if c.element != nil {
		return ErrAlreadyBound
	}
	if src.VideoURL == "" {
		return ErrNoSource
	}
	c.source = src
	c.element = el
	return nil
}

func (c *Controller) Source() MediaSource {
	return c.source
}

func (c *Controller) State() PlaybackState {
	return c.state
}

func (c *Controller) bound() bool {
	return !c.closed && c.element != nil
}

func (c *Controller) TogglePlay() {
	if !c.bound() {
		return
	}
	if c.state.IsPlaying {
		if err := c.element.Pause(); err != nil {
			c.logger.Warn("pause failed", "url", c.source.VideoURL, "error", err)
			return
		}
		c.state.IsPlaying = false
		return
	}
	if err := c.element.Play(); err != nil {
		c.logger.Debug("playback did not start", "url", c.source.VideoURL, "error", err)
		return
	}
	c.state.IsPlaying = true
}

// OnTimeUpdate recomputes progress from the element's timing. Updates with
// an unknown duration are ignored.
func (c *Controller) OnTimeUpdate(currentTime, duration float64) {
	if c.closed || !validDuration(duration) || math.IsNaN(currentTime) {
		return
	}
	c.state.ProgressPercent = clamp(currentTime/duration*100, 0, 100)
}

// OnElementChange brings the state in line with a change the element made
// on its own. A zero volume while already muted is the echo of ToggleMute
// and keeps the restore level.
func (c *Controller) OnElementChange(ch ElementChange) {
	if !c.bound() {
		return
	}
	switch ch.Kind {
	case ChangePlaying:
		c.state.IsPlaying = ch.Playing
	case ChangeVolume:
		if math.IsNaN(ch.Volume) {
			return
		}
		level := clamp(ch.Volume, 0, 1)
		if level == 0 {
			if !c.state.IsMuted {
				c.state.VolumeLevel = 0
				c.state.IsMuted = true
			}
			return
		}
		c.state.VolumeLevel = level
		c.state.IsMuted = false
	}
}

// Seek moves playback to targetPercent of the duration and reports the new
// progress without waiting for the element to finish seeking.
func (c *Controller) Seek(targetPercent float64) {
	if !c.bound() || math.IsNaN(targetPercent) {
		return
	}
	duration := c.element.Duration()
	if !validDuration(duration) {
		return
	}
	targetPercent = clamp(targetPercent, 0, 100)
	if err := c.element.Seek(targetPercent / 100 * duration); err != nil {
		c.logger.Warn("seek failed", "url", c.source.VideoURL, "percent", targetPercent, "error", err)
	}
	c.state.ProgressPercent = targetPercent
}

func (c *Controller) SetVolume(level float64) {
	if !c.bound() || math.IsNaN(level) {
		return
	}
	level = clamp(level, 0, 1)
	if err := c.element.SetVolume(level); err != nil {
		c.logger.Warn("set volume failed", "url", c.source.VideoURL, "level", level, "error", err)
	}
	c.state.VolumeLevel = level
	c.state.IsMuted = level == 0
}

// ToggleMute silences the element while keeping VolumeLevel as the level to
// restore. Unmuting from a zero level restores full volume.
func (c *Controller) ToggleMute() {
	if !c.bound() {
		return
	}
	if c.state.IsMuted {
		restore := c.state.VolumeLevel
		if restore == 0 {
			restore = 1
		}
		if err := c.element.SetVolume(restore); err != nil {
			c.logger.Warn("unmute failed", "url", c.source.VideoURL, "error", err)
		}
		c.state.VolumeLevel = restore
		c.state.IsMuted = false
		return
	}
	if err := c.element.SetVolume(0); err != nil {
		c.logger.Warn("mute failed", "url", c.source.VideoURL, "error", err)
	}
	c.state.IsMuted = true
}

// Close unbinds the element and resets the state. Operations after Close
// are no-ops.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.element = nil
	c.state = PlaybackState{}
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
