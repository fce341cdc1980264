package sketch

import (
	"reflect"
)

type Module interface {
	Install(app *App, cmd *Commands)
}

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	app := &App{
		state:       Uninitialized,
		config:      DefaultConfig(),
		stages:      defaultStages(),
		systems:     make(map[string][]systemFn),
		transitions: make(map[FrameState][]systemFn),
		resources:   make(map[reflect.Type]any),
	}
	for _, stage := range app.stages {
		app.systems[stage.Name] = make([]systemFn, 0)
	}
	app.commands = &Commands{app: app}
	return &AppBuilder{app: app}
}

// UseConfig replaces the default configuration. Modules read it at Build.
func (b *AppBuilder) UseConfig(config Config) *AppBuilder {
	b.app.config = config
	return b
}

func (b *AppBuilder) UseSketch(sketch Sketch) *AppBuilder {
	b.app.sketch = sketch
	return b
}

// UseRenderer selects the backend that receives every frame batch.
func (b *AppBuilder) UseRenderer(renderer Renderer) *AppBuilder {
	ensureSingleRenderer(b.app, rendererName(renderer))
	b.app.renderer = renderer
	return b
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)

	return b
}

func (b *AppBuilder) Build() *App {
	app := b.app

	for _, module := range b.modules {
		module.Install(app, app.commands)
	}
	if app.profiler == nil {
		app.profiler = NewProfiler()
	}
	if app.renderer != nil {
		app.Logger().Infof("Renderer selected: %s", rendererName(app.renderer))
	}

	return app
}
