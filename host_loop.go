package sketch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/subchen/go-trylock/v2"
)

// Paced is implemented by presenters that block on vsync. The standalone
// loop does not add its own ticker for them.
type Paced interface {
	Paced() bool
}

// HeadlessEvents is an event source without a window. It stays open until
// Close, or until Limit polls have succeeded when Limit is positive.
type HeadlessEvents struct {
	Limit  uint64
	Width  int
	Height int

	mu     sync.Mutex
	polls  uint64
	closed bool
}

func NewHeadlessEvents(limit uint64) *HeadlessEvents {
	return &HeadlessEvents{Limit: limit}
}

func (h *HeadlessEvents) Poll() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if h.Limit > 0 && h.polls >= h.Limit {
		h.closed = true
		return false
	}
	h.polls++
	return true
}

func (h *HeadlessEvents) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// SetSize simulates a host resize; it is picked up on the next frame.
func (h *HeadlessEvents) SetSize(width, height int) {
	h.mu.Lock()
	h.Width, h.Height = width, height
	h.mu.Unlock()
}

func (h *HeadlessEvents) Size() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Width, h.Height
}

// Resize updates the configured size, the scene viewport and the renderer.
func (app *App) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if width == app.config.Width && height == app.config.Height {
		return
	}
	app.Logger().Debugf("resize %dx%d -> %dx%d", app.config.Width, app.config.Height, width, height)
	app.config.Width, app.config.Height = width, height
	if app.scene != nil {
		app.scene.Resize(width, height)
	}
	if app.renderer != nil {
		app.renderer.Resize(width, height)
	}
}

func (app *App) syncSize(events EventSource) {
	if s, ok := events.(Sizer); ok {
		app.Resize(s.Size())
	}
}

func (app *App) present() error {
	p, ok := app.renderer.(Presenter)
	if !ok {
		return nil
	}
	app.profiler.BeginScope("present")
	defer app.profiler.EndScope("present")
	if err := p.Present(); err != nil {
		return app.abort("present", err)
	}
	return nil
}

// RunStandalone owns the loop: poll, frame, present, until the event source
// closes or ctx is cancelled. The driver is always closed on return.
func RunStandalone(ctx context.Context, app *App, events EventSource) error {
	if app.State() == Uninitialized {
		if err := app.Setup(); err != nil {
			return err
		}
	}

	var tick <-chan time.Time
	if p, ok := app.renderer.(Paced); !ok || !p.Paced() {
		ticker := time.NewTicker(time.Second / time.Duration(app.config.TickRate))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if err := ctx.Err(); err != nil {
			_ = app.Close()
			return err
		}
		if !events.Poll() || app.CloseRequested() {
			return app.Close()
		}
		app.syncSize(events)
		if err := app.Frame(); err != nil {
			return err
		}
		if err := app.present(); err != nil {
			return err
		}
		if tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			_ = app.Close()
			return ctx.Err()
		case <-tick:
		}
	}
}

type TickResult struct {
	Ready bool
	PNG   []byte
	Frame uint64
}

// Cooperative drives one frame per Tick for a host that owns the event loop.
type Cooperative struct {
	app    *App
	events EventSource
	lock   trylock.TryLocker
}

func NewCooperative(app *App, events EventSource) *Cooperative {
	return &Cooperative{
		app:    app,
		events: events,
		lock:   trylock.New(),
	}
}

func (c *Cooperative) App() *App { return c.app }

// Tick polls events and renders at most one frame. A tick that overlaps a
// running tick fails with ErrConcurrentTick instead of waiting. After the
// driver closes, every tick returns a result with Ready false.
func (c *Cooperative) Tick(ctx context.Context) (TickResult, error) {
	lockCtx, cancel := context.WithTimeout(ctx, time.Millisecond)
	locked := c.lock.TryLock(lockCtx)
	cancel()
	if !locked {
		return TickResult{}, ErrConcurrentTick
	}
	defer c.lock.Unlock()

	app := c.app
	result := TickResult{Frame: app.FrameCount()}
	if app.State() == Closed {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if app.State() == Uninitialized {
		if err := app.Setup(); err != nil {
			return result, err
		}
	}

	if !c.events.Poll() || app.CloseRequested() {
		return result, app.Close()
	}
	app.syncSize(c.events)
	if err := app.Frame(); err != nil {
		return TickResult{Frame: app.FrameCount()}, err
	}
	if err := app.present(); err != nil {
		return TickResult{Frame: app.FrameCount()}, err
	}

	png, err := c.readback()
	if err != nil {
		return TickResult{Frame: app.FrameCount()}, app.abort("readback", err)
	}
	return TickResult{Ready: true, PNG: png, Frame: app.FrameCount()}, nil
}

func (c *Cooperative) readback() ([]byte, error) {
	rb, ok := c.app.renderer.(Readbacker)
	if !ok {
		return nil, nil
	}
	img, ready, err := rb.Readback()
	if errors.Is(err, ErrNotReady) || (err == nil && !ready) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	png, err := EncodePNG(img, c.app.config.ReadbackMaxWidth)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", c.app.FrameCount(), err)
	}
	return png, nil
}
