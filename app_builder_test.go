package sketch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type MockModule struct {
	installed bool
}

func (m *MockModule) Install(app *App, commands *Commands) {
	m.installed = true
}

type MockModule2 struct {
	installed bool
}

func (m *MockModule2) Install(app *App, commands *Commands) {
	m.installed = true
	commands.AddResources(&MockResource1{name: "from module"})
}

func TestAppBuilder_Defaults(t *testing.T) {
	app := NewAppBuilder().Build()

	if app.State() != Uninitialized {
		t.Errorf("Expected state Uninitialized, got %v", app.State())
	}
	if app.Config() != DefaultConfig() {
		t.Errorf("Expected default config, got %+v", app.Config())
	}
	if app.Profiler() == nil {
		t.Errorf("Expected a profiler to be created")
	}
	if app.Logger() == nil {
		t.Errorf("Expected a nop logger, got nil")
	}
}

func TestAppBuilder_UseModule(t *testing.T) {
	builder := NewAppBuilder()
	mockModule := &MockModule{}
	builder.UseModule(mockModule)

	if len(builder.modules) != 1 {
		t.Errorf("Expected modules to contain 1 module, got %v", len(builder.modules))
	}
}

func TestAppBuilder_Build_WithModules(t *testing.T) {
	builder := NewAppBuilder()
	module := &MockModule{}
	module2 := &MockModule2{}
	builder.UseModule(module, module2)

	app := builder.Build()

	if len(builder.modules) != 2 {
		t.Errorf("Expected modules to contain 2 modules, got %v", len(builder.modules))
	}
	if !module.installed || !module2.installed {
		t.Errorf("Expected Install to be called on every module")
	}
	res, ok := Resource[MockResource1](app)
	assert.True(t, ok)
	assert.Equal(t, "from module", res.name)
}

type otherRenderer struct{ fakeRenderer }

func (r *otherRenderer) Name() string { return "other" }

func TestAppBuilder_SingleRenderer(t *testing.T) {
	builder := NewAppBuilder().UseRenderer(&fakeRenderer{})
	builder.UseRenderer(&fakeRenderer{})

	assert.PanicsWithValue(t, "Multiple renderers installed: fake and other", func() {
		builder.UseRenderer(&otherRenderer{})
	})
}

func TestAppBuilder_LoggingModuleInstallsLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	app := NewAppBuilder().
		UseConfig(cfg).
		UseModule(LoggingModule{Prefix: "test"}).
		Build()

	logger, ok := app.Logger().(*DefaultLogger)
	if assert.True(t, ok) {
		assert.True(t, logger.DebugEnabled())
		assert.Equal(t, "test", logger.prefix)
	}
}
