package gpu

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// Window is a glfw window without a client API; wgpu draws into it
// through a surface. It doubles as the event source for the standalone
// host loop.
type Window struct {
	win    *glfw.Window
	title  string
	width  int
	height int
}

// NewWindow must be called from the main goroutine; the calling thread
// stays locked for the lifetime of the window.
func NewWindow(width, height int, title string) (*Window, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, err
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, err
	}

	w := &Window{win: win, title: title, width: width, height: height}
	win.SetKeyCallback(func(win *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
	})
	return w, nil
}

// Poll pumps window events and reports whether the window is still open.
func (w *Window) Poll() bool {
	if w.win == nil {
		return false
	}
	glfw.PollEvents()
	return !w.win.ShouldClose()
}

// Size is the framebuffer size in pixels. A minimized window reports zero.
func (w *Window) Size() (int, int) {
	return w.width, w.height
}

func (w *Window) Close() {
	if w.win != nil {
		w.win.SetShouldClose(true)
	}
}

func (w *Window) Destroy() {
	if w.win == nil {
		return
	}
	w.win.Destroy()
	w.win = nil
	glfw.Terminate()
}
