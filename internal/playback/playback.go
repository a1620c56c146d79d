// Package playback drives auto-advance scrubbing through a proof's
// event log: a repeating timer that steps the reconstructed view one
// event per tick until the end of the log or an explicit pause.
package playback

import (
	"context"
	"sync"
	"time"

	"typedcode/internal/replay"
)

// DefaultTickInterval is the default auto-advance rate.
const DefaultTickInterval = 50 * time.Millisecond

// TickFunc receives the new index and the reconstructed content after
// each advance (and after every seek).
type TickFunc func(index int, content string)

// Controller owns playback state for one open proof document.
type Controller struct {
	mu       sync.Mutex
	repMu    sync.Mutex
	replayer *replay.Replayer
	interval time.Duration
	onTick   TickFunc

	index   int
	playing bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a controller over a replayer.
func New(r *replay.Replayer, interval time.Duration, onTick TickFunc) *Controller {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Controller{
		replayer: r,
		interval: interval,
		onTick:   onTick,
	}
}

// Index returns the current scrub position.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Playing reports whether auto-advance is running.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Play starts auto-advance. Calling Play while already playing is a
// no-op. Playback stops on its own at the end of the log, on Pause,
// or when ctx is cancelled.
func (c *Controller) Play(ctx context.Context) {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = true
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx, stop)
}

func (c *Controller) run(ctx context.Context, stop chan struct{}) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.setStopped()
			return
		case <-stop:
			return
		case <-ticker.C:
			if !c.advance() {
				c.setStopped()
				return
			}
		}
	}
}

// advance steps one index forward. Returns false at the log's end.
func (c *Controller) advance() bool {
	c.mu.Lock()
	if c.index >= c.replayer.Len() {
		c.mu.Unlock()
		return false
	}
	c.index++
	index := c.index
	c.mu.Unlock()

	c.emit(index)
	return index < c.replayer.Len()
}

// Pause stops auto-advance. The current index is retained.
func (c *Controller) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = false
	close(c.stop)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) setStopped() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
}

// Seek moves the view to an arbitrary index, clamped into
// [0, log length]. Seeking during playback repositions the cursor and
// playback continues from there; it does not stop playback.
func (c *Controller) Seek(index int) {
	c.mu.Lock()
	if index < 0 {
		index = 0
	}
	if index > c.replayer.Len() {
		index = c.replayer.Len()
	}
	c.index = index
	c.mu.Unlock()

	c.emit(index)
}

// emit resolves content outside the state lock so a long replay never
// stalls Pause. A seek issued during playback may overlap a tick, so
// replayer access gets its own lock.
func (c *Controller) emit(index int) {
	if c.onTick == nil {
		return
	}
	c.repMu.Lock()
	content := c.replayer.ContentAt(index)
	c.repMu.Unlock()
	c.onTick(index, content)
}
