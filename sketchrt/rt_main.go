package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/schollz/progressbar/v3"

	"github.com/gekko3d/sketch"
	"github.com/gekko3d/sketch/sketchrt/rt/core"
	"github.com/gekko3d/sketch/sketchrt/rt/gpu"
	"github.com/gekko3d/sketch/sketchrt/rt/soft"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	backend := flag.String("backend", "", "Renderer backend (wgpu or soft)")
	offscreen := flag.Bool("offscreen", false, "Render without a window")
	frames := flag.Int("frames", 0, "Stop after this many frames (0 runs until closed)")
	outDir := flag.String("out", "", "Write every frame as PNG into this directory")
	pack := flag.String("pack", "", "Asset pack to draw instead of the demo scene")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := sketch.DefaultConfig()
	if *configPath != "" {
		loaded, err := sketch.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *pack != "" {
		cfg.SketchFile = *pack
	}
	cfg.Offscreen = cfg.Offscreen || *offscreen || *outDir != ""
	cfg.Debug = cfg.Debug || *debug
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	renderer, events, err := createRenderer(cfg, *frames)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	demo := &demoSketch{}
	app := sketch.NewAppBuilder().
		UseConfig(cfg).
		UseRenderer(renderer).
		UseSketch(sketch.Sketch{Setup: demo.setup, Draw: demo.draw}).
		UseModule(
			sketch.ConfigModule{},
			sketch.LoggingModule{},
			sketch.TimeModule{},
			sketch.ProfilerModule{},
			sketch.AssetServerModule{},
			sketch.LiveCodeModule{OnChange: demo.reload},
		).
		Build()
	demo.app = app

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *outDir != "" {
		err = export(ctx, app, events, *outDir, *frames)
	} else {
		err = sketch.RunStandalone(ctx, app, events)
	}
	switch ev := events.(type) {
	case *gpu.Window:
		ev.Destroy()
	case *limitedEvents:
		if w, ok := ev.EventSource.(*gpu.Window); ok {
			w.Destroy()
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createRenderer(cfg sketch.Config, frames int) (sketch.Renderer, sketch.EventSource, error) {
	headless := sketch.NewHeadlessEvents(uint64(max(frames, 0)))
	headless.SetSize(cfg.Width, cfg.Height)

	switch sketch.RendererName(cfg.Backend) {
	case sketch.RendererSoft:
		return soft.New(cfg.Width, cfg.Height), headless, nil
	case sketch.RendererWGPU:
		if cfg.Offscreen {
			r, err := gpu.New(gpu.Options{Width: cfg.Width, Height: cfg.Height, MaxLights: cfg.MaxLights})
			return r, headless, err
		}
		win, err := gpu.NewWindow(cfg.Width, cfg.Height, cfg.Title)
		if err != nil {
			return nil, nil, err
		}
		r, err := gpu.New(gpu.Options{Width: cfg.Width, Height: cfg.Height, Window: win, MaxLights: cfg.MaxLights})
		if err != nil {
			win.Destroy()
			return nil, nil, err
		}
		var events sketch.EventSource = win
		if frames > 0 {
			events = &limitedEvents{EventSource: win, Sizer: win, left: frames}
		}
		return r, events, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// limitedEvents closes a window source after a fixed number of frames.
type limitedEvents struct {
	sketch.EventSource
	sketch.Sizer
	left int
}

func (l *limitedEvents) Poll() bool {
	if l.left <= 0 {
		return false
	}
	l.left--
	return l.EventSource.Poll()
}

// export drives the app cooperatively and writes each ready frame to dir.
func export(ctx context.Context, app *sketch.App, events sketch.EventSource, dir string, frames int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	total := int64(frames)
	if frames <= 0 {
		total = -1
	}
	bar := progressbar.Default(total, "rendering")
	defer bar.Finish()

	coop := sketch.NewCooperative(app, events)
	for {
		if err := ctx.Err(); err != nil {
			app.Close()
			return err
		}
		res, err := coop.Tick(ctx)
		if err != nil {
			return err
		}
		if !res.Ready {
			return nil
		}
		if len(res.PNG) == 0 {
			continue
		}
		name := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", res.Frame))
		if err := os.WriteFile(name, res.PNG, 0o644); err != nil {
			app.Close()
			return err
		}
		_ = bar.Add(1)
	}
}

// demoSketch orbits a few lit shapes, or draws every mesh of an asset pack
// when one is configured.
type demoSketch struct {
	app *sketch.App

	shiny  core.MaterialHandle
	matte  core.MaterialHandle
	key    core.LightHandle
	ring   core.GeometryHandle
	packID sketch.AssetId

	packMeshes   []core.GeometryHandle
	packMaterial *core.MaterialHandle
	// lights cannot be removed from a scene, so a reload keeps the first set
	packLights   bool
}

func (d *demoSketch) setup(s *core.Scene) error {
	var err error
	if d.shiny, err = s.CreateMaterial(); err != nil {
		return err
	}
	if err = s.SetFloat(d.shiny, "metallic", 0.6); err != nil {
		return err
	}
	if err = s.SetFloat(d.shiny, "roughness", 0.3); err != nil {
		return err
	}
	if d.matte, err = s.CreateMaterial(); err != nil {
		return err
	}
	if err = s.SetFloat4(d.matte, "base_color", 0.8, 0.8, 0.75, 1); err != nil {
		return err
	}

	if d.key, err = s.CreateDirectionalLight(1, 0.95, 0.9, 1); err != nil {
		return err
	}
	if err = s.LightLookAt(d.key, -0.4, -1, -0.6); err != nil {
		return err
	}
	fill, err := s.CreatePointLight(0.3, 0.5, 1, 2, 600)
	if err != nil {
		return err
	}
	if err = s.LightPosition(fill, 0, 150, 200); err != nil {
		return err
	}

	if err = s.BeginGeometry(); err != nil {
		return err
	}
	for i := 0; i < 12; i++ {
		s.PushMatrix()
		s.RotateY(float32(i) * 2 * math.Pi / 12)
		s.Translate(120, 0, 0)
		s.Fill(float32(i)/12, 0.4, 1-float32(i)/12, 1)
		if err := s.Box(16, 16, 16); err != nil {
			return err
		}
		if err := s.PopMatrix(); err != nil {
			return err
		}
	}
	if d.ring, err = s.EndGeometry(); err != nil {
		return err
	}

	if path := d.app.Config().SketchPath(); path != "" {
		return d.loadPack(s, path)
	}
	return nil
}

func (d *demoSketch) loadPack(s *core.Scene, path string) error {
	server, ok := sketch.Resource[sketch.AssetServer](d.app)
	if !ok {
		return fmt.Errorf("asset server not installed")
	}
	if d.packID != "" {
		server.Unload(d.packID)
	}
	for _, g := range d.packMeshes {
		_ = s.DestroyGeometry(g)
	}
	d.packMeshes = nil

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	id, err := server.LoadPack(abs)
	if err != nil {
		return err
	}
	d.packID = id
	src, err := server.Pack(id)
	if err != nil {
		return err
	}
	for _, name := range src.MeshNames() {
		g, err := sketch.ImportGeometry(s, src, name)
		if err != nil {
			return err
		}
		d.packMeshes = append(d.packMeshes, g)
	}
	if names := src.MaterialNames(); len(names) > 0 {
		if d.packMaterial != nil {
			_ = s.DestroyMaterial(*d.packMaterial)
		}
		m, err := sketch.ImportMaterial(s, src, names[0])
		if err != nil {
			return err
		}
		d.packMaterial = &m
	}
	for i := 0; i < src.LightCount() && !d.packLights; i++ {
		if _, err := sketch.ImportLight(s, src, i); err != nil {
			return err
		}
	}
	d.packLights = true
	if src.CameraCount() > 0 {
		return sketch.ImportCamera(s, src, 0)
	}
	return nil
}

func (d *demoSketch) reload(app *sketch.App, path string) error {
	return d.loadPack(app.Scene(), path)
}

func (d *demoSketch) draw(s *core.Scene) error {
	t := float32(s.Elapsed().Seconds())
	s.Background(0.05, 0.05, 0.08, 1)
	s.Mode3D()

	if len(d.packMeshes) > 0 {
		s.UseDefaultMaterial()
		if d.packMaterial != nil {
			if err := s.UseMaterial(*d.packMaterial); err != nil {
				return err
			}
		}
		for _, g := range d.packMeshes {
			if err := s.DrawGeometry(g); err != nil {
				return err
			}
		}
		return nil
	}

	s.CameraPosition(0, 120, 320)
	s.CameraLookAt(0, 0, 0)

	if err := s.UseMaterial(d.matte); err != nil {
		return err
	}
	s.PushMatrix()
	s.Translate(0, -40, 0)
	s.RotateX(-math.Pi / 2)
	if err := s.Plane(600, 600); err != nil {
		return err
	}
	s.Translate(0, 0, 0.5)
	s.Fill(0.2, 0.2, 0.25, 1)
	s.Stroke(1, 0.6, 0.2, 1)
	if err := s.StrokeWeight(3); err != nil {
		return err
	}
	if err := s.Rect(-120, -120, 240, 240, 24); err != nil {
		return err
	}
	if err := s.PopMatrix(); err != nil {
		return err
	}

	if err := s.UseMaterial(d.shiny); err != nil {
		return err
	}
	s.PushMatrix()
	s.RotateY(t * 0.5)
	if err := s.DrawGeometry(d.ring); err != nil {
		return err
	}
	if err := s.PopMatrix(); err != nil {
		return err
	}

	s.UseDefaultMaterial()
	s.Fill(1, 0.6, 0.2, 1)
	s.PushMatrix()
	s.Translate(0, 10+20*float32(math.Sin(float64(t))), 0)
	if err := s.Sphere(40); err != nil {
		return err
	}
	return s.PopMatrix()
}
