package sketch

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"time"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

var (
	ErrInvalidState   = errors.New("invalid driver state")
	ErrClosed         = errors.New("driver is closed")
	ErrConcurrentTick = errors.New("tick called while another tick is running")
)

// FrameState is the driver lifecycle:
// Uninitialized -> Configured -> FrameActive <-> Idle -> Closed.
type FrameState int

const (
	Uninitialized FrameState = iota
	Configured
	FrameActive
	Idle
	Closed
)

func (s FrameState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Configured:
		return "Configured"
	case FrameActive:
		return "FrameActive"
	case Idle:
		return "Idle"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// Sketch is the user program. Setup runs once, Draw once per frame. Either
// may be nil. Returning an error (or panicking) closes the driver.
type Sketch struct {
	Setup func(s *core.Scene) error
	Draw  func(s *core.Scene) error
}

type systemFn any

type App struct {
	state       FrameState
	config      Config
	sketch      Sketch
	renderer    Renderer
	scene       *core.Scene
	profiler    *Profiler
	stages      []Stage
	systems     map[string][]systemFn
	transitions map[FrameState][]systemFn
	resources   map[reflect.Type]any
	commands    *Commands
	logger      Logger
	lastBatch   *core.FrameBatch
	closeAsked  bool
	err         error
}

func (app *App) State() FrameState   { return app.state }
func (app *App) Config() Config      { return app.config }
func (app *App) Scene() *core.Scene  { return app.scene }
func (app *App) Renderer() Renderer  { return app.renderer }
func (app *App) Profiler() *Profiler { return app.profiler }

// CloseRequested reports whether a system or the sketch asked the host loop
// to shut down.
func (app *App) CloseRequested() bool { return app.closeAsked }

// Err is the error that closed the driver, if any.
func (app *App) Err() error { return app.err }

// FrameCount is the number of completed frames.
func (app *App) FrameCount() uint64 {
	if app.scene == nil {
		return 0
	}
	return app.scene.Frame()
}

// LastBatch is the most recently submitted frame.
func (app *App) LastBatch() *core.FrameBatch { return app.lastBatch }

func (app *App) setState(next FrameState) error {
	if app.state == next {
		return nil
	}
	app.Logger().Debugf("driver %s -> %s", app.state, next)
	app.state = next
	for _, system := range app.transitions[next] {
		if err := app.callSystem(system); err != nil {
			return err
		}
	}
	return nil
}

// Setup validates the config, creates the scene and runs the user setup
// callback. An invalid config closes the driver.
func (app *App) Setup() error {
	if app.state != Uninitialized {
		return fmt.Errorf("setup in state %s: %w", app.state, ErrInvalidState)
	}
	if err := app.config.Validate(); err != nil {
		return app.abort("config", err)
	}
	app.scene = core.NewScene(core.SceneConfig{
		Width:     app.config.Width,
		Height:    app.config.Height,
		MaxLights: app.config.MaxLights,
	})
	app.addResources(app.scene)

	if err := app.callSystems(Prelude); err != nil {
		return app.abort("prelude", err)
	}
	if err := app.invoke("setup", app.sketch.Setup); err != nil {
		return app.abort("setup", err)
	}
	if err := app.setState(Configured); err != nil {
		return app.abort("setup", err)
	}
	app.Logger().Infof("sketch configured (%dx%d, scene %d)", app.config.Width, app.config.Height, app.scene.ID())
	return nil
}

// Frame runs one FrameActive -> Idle cycle and submits the batch to the renderer.
func (app *App) Frame() error {
	switch app.state {
	case Configured, Idle:
	case Closed:
		return ErrClosed
	default:
		return fmt.Errorf("frame in state %s: %w", app.state, ErrInvalidState)
	}
	if err := app.setState(FrameActive); err != nil {
		return app.abort("frame", err)
	}

	app.profiler.BeginScope("frame")
	var batch *core.FrameBatch
	for _, stage := range app.frameStages() {
		if err := app.callSystems(stage); err != nil {
			return app.abort(stage.Name, err)
		}
		switch stage.Name {
		case PreUpdate.Name:
			if err := app.scene.BeginFrame(app.frameDelta()); err != nil {
				return app.abort("begin frame", err)
			}
		case Update.Name:
			app.profiler.BeginScope("draw")
			err := app.invoke("draw", app.sketch.Draw)
			app.profiler.EndScope("draw")
			if err != nil {
				return app.abort("draw", err)
			}
		case PostUpdate.Name:
			b, err := app.scene.EndFrame()
			if err != nil {
				return app.abort("end frame", err)
			}
			batch = b
			app.lastBatch = b
			app.profiler.SetCount("draws", len(b.Draws))
			app.profiler.SetCount("vertices", b.VertexCount())
			app.profiler.SetCount("triangles", b.TriangleCount())
			app.profiler.SetCount("lights", len(b.Lights))
		case PreRender.Name:
			if app.renderer == nil || batch == nil {
				continue
			}
			app.profiler.BeginScope("submit")
			err := app.renderer.Submit(batch)
			app.profiler.EndScope("submit")
			if err != nil {
				return app.abort("submit", err)
			}
		}
	}
	app.profiler.EndScope("frame")

	if err := app.setState(Idle); err != nil {
		return app.abort("frame", err)
	}
	return nil
}

// Close tears down the scene and releases the renderer. Handles issued by
// the scene become invalid. Safe to call more than once.
func (app *App) Close() error {
	if app.state == Closed {
		return nil
	}
	if err := app.callSystems(Finale); err != nil {
		app.Logger().Errorf("finale: %v", err)
	}
	if app.scene != nil {
		app.scene.Close()
	}
	if app.renderer != nil {
		app.renderer.Release()
	}
	if err := app.setState(Closed); err != nil {
		app.Logger().Errorf("close: %v", err)
	}
	app.Logger().Infof("sketch closed after %d frames", app.FrameCount())
	return nil
}

// abort closes the driver after a fatal error in the current frame.
func (app *App) abort(where string, err error) error {
	err = fmt.Errorf("%s: %w", where, err)
	app.err = err
	app.Logger().Errorf("aborting: %v", err)
	_ = app.Close()
	return err
}

func (app *App) invoke(name string, fn func(*core.Scene) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()
	return fn(app.scene)
}

func (app *App) frameDelta() time.Duration {
	if t, ok := Resource[Time](app); ok {
		return t.Dt
	}
	return 0
}

func (app *App) callSystems(stage Stage) error {
	for _, system := range app.systems[stage.Name] {
		if err := app.callSystem(system); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type T, if installed.
func Resource[T any](app *App) (*T, bool) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	r, ok := app.resources[t]
	if !ok {
		return nil, false
	}
	typed, ok := r.(*T)
	return typed, ok
}

var (
	typeOfApp      = reflect.TypeOf(App{})
	typeOfCommands = reflect.TypeOf(Commands{})
	typeOfError    = reflect.TypeOf((*error)(nil)).Elem()
)

func (app *App) callSystem(system systemFn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("system %s panicked: %v", systemName(system), r)
		}
	}()
	return app.callSystemInternal(system)
}

// callSystemInternal resolves each pointer argument from the resources and
// calls the system. A trailing error result is returned.
func (app *App) callSystemInternal(system systemFn) error {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Ptr {
			panic(fmt.Sprintf("System %s: argument %d must be a pointer, got %s", systemName(system), i, argType))
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfApp {
			args[i] = reflect.ValueOf(app)
		} else if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(app.commands)
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				systemName(system),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			panic(msg)
		}
	}
	out := systemValue.Call(args)
	if len(out) == 1 && out[0].Type().Implements(typeOfError) && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

func systemName(system systemFn) string {
	return runtime.FuncForPC(reflect.ValueOf(system).Pointer()).Name()
}
