package sketch

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// SketchWatcher reports writes to the sketch file. The parent directory is
// watched so that editors which save by rename are still seen.
type SketchWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	errs    []error
}

func NewSketchWatcher(path string) (*SketchWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("sketch watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &SketchWatcher{path: abs, watcher: w}, nil
}

func (sw *SketchWatcher) Path() string { return sw.path }

// PollChanges drains pending events without blocking and reports whether
// the sketch file was written, created or renamed into place.
func (sw *SketchWatcher) PollChanges() bool {
	changed := false
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return changed
			}
			if filepath.Clean(event.Name) != sw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				changed = true
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return changed
			}
			sw.errs = append(sw.errs, err)
		default:
			return changed
		}
	}
}

// Errors returns and clears watcher errors seen by PollChanges.
func (sw *SketchWatcher) Errors() []error {
	errs := sw.errs
	sw.errs = nil
	return errs
}

func (sw *SketchWatcher) Close() error {
	return sw.watcher.Close()
}

// LiveCodeModule watches Config.SketchPath and calls OnChange from the
// PreUpdate stage after each save. Nothing is installed when no sketch file
// is configured.
type LiveCodeModule struct {
	OnChange func(app *App, path string) error
}

type liveCode struct {
	watcher  *SketchWatcher
	onChange func(app *App, path string) error
	reloads  int
}

func (mod LiveCodeModule) Install(app *App, cmd *Commands) {
	path := app.config.SketchPath()
	if path == "" {
		return
	}
	w, err := NewSketchWatcher(path)
	if err != nil {
		app.Logger().Warnf("live coding disabled: %v", err)
		return
	}
	app.Logger().Infof("watching %s for changes", w.Path())
	cmd.AddResources(&liveCode{watcher: w, onChange: mod.OnChange})
	cmd.UseSystem(System(liveCodeSystem).InStage(PreUpdate))
	cmd.UseSystem(System(liveCodeCloseSystem).InStage(Finale))
}

func liveCodeSystem(app *App, lc *liveCode) error {
	for _, err := range lc.watcher.Errors() {
		app.Logger().Warnf("sketch watcher: %v", err)
	}
	if !lc.watcher.PollChanges() {
		return nil
	}
	lc.reloads++
	app.Profiler().AddCount("reloads", 1)
	app.Logger().Infof("sketch %s changed (reload %d)", lc.watcher.Path(), lc.reloads)
	if lc.onChange != nil {
		return lc.onChange(app, lc.watcher.Path())
	}
	return nil
}

func liveCodeCloseSystem(lc *liveCode) {
	_ = lc.watcher.Close()
}
