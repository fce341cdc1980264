package sketch

import (
	"image"
	"reflect"

	"github.com/gekko3d/sketch/sketchrt/rt/core"
)

// RendererName identifies a concrete backend.
// Keep names aligned with Config.Backend values.
type RendererName string

const (
	RendererWGPU RendererName = "wgpu"
	RendererSoft RendererName = "soft"
)

var ErrNotReady = core.ErrNotReady

// Renderer consumes frame batches. Submit must not keep references into the
// batch past the next Submit.
type Renderer interface {
	Submit(batch *core.FrameBatch) error
	Resize(width, height int)
	Release()
}

// Presenter is implemented by renderers with a surface or an image to flip.
type Presenter interface {
	Present() error
}

// Readbacker returns the last presented image. ok is false until the first
// present.
type Readbacker interface {
	Readback() (img image.Image, ok bool, err error)
}

// EventSource pumps window or host events. Poll returns false once the
// source has been closed.
type EventSource interface {
	Poll() bool
}

// Sizer is implemented by event sources that track a framebuffer size.
type Sizer interface {
	Size() (width, height int)
}

type namedRenderer interface {
	Name() string
}

func rendererName(r Renderer) string {
	if n, ok := r.(namedRenderer); ok {
		return n.Name()
	}
	t := reflect.TypeOf(r)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}
