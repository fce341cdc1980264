package sketch

import (
	"fmt"
	"reflect"
)

// RendererTag marks that a renderer backend has been installed into the App.
// Only one backend can drive a sketch at a time.
type RendererTag struct {
	Name string
}

// ensureSingleRenderer enforces the one-backend rule.
// Installing the same backend twice is a no-op; a different one panics with a clear message.
func ensureSingleRenderer(app *App, name string) {
	if app == nil {
		panic("ensureSingleRenderer: app is nil")
	}
	t := reflect.TypeOf((*RendererTag)(nil)).Elem()
	if res, ok := app.resources[t]; ok {
		if tag, ok2 := res.(*RendererTag); ok2 {
			if tag.Name != name {
				// Also log via the installed logger, then fail fast
				app.Logger().Errorf("Multiple renderers installed: %s and %s", tag.Name, name)
				panic(fmt.Sprintf("Multiple renderers installed: %s and %s", tag.Name, name))
			}
			return
		}
		// Unexpected type collision
		panic("RendererTag resource present with unexpected type")
	}
	app.addResources(&RendererTag{Name: name})
}
