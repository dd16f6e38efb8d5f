package event

import (
	"time"

	"github.com/framecore/framecore/internal/core/lifecycle"
)

// Name identifies an event on the bus.
type Name string

const (
	NameRenderStart      Name = "render:start"
	NameRenderStop       Name = "render:stop"
	NameFrame            Name = "frame"
	NameComponentAdded   Name = "component:added"
	NameComponentRemoved Name = "component:removed"
	NameComponentError   Name = "component:error"
	NameResize           Name = "resize"
	NameFPSSample        Name = "fps:sample"
	NameFPSDrop          Name = "fps:drop"
)

// Names lists every event the bus knows about.
var Names = []Name{
	NameRenderStart,
	NameRenderStop,
	NameFrame,
	NameComponentAdded,
	NameComponentRemoved,
	NameComponentError,
	NameResize,
	NameFPSSample,
	NameFPSDrop,
}

// Key binds an event name to its payload type. Keys are only declared in
// this file, which makes the event map closed.
type Key[T any] struct {
	name Name
}

func (k Key[T]) Name() Name { return k.name }

var (
	RenderStart      = Key[RenderPayload]{NameRenderStart}
	RenderStop       = Key[RenderPayload]{NameRenderStop}
	Frame            = Key[*FramePayload]{NameFrame}
	ComponentAdded   = Key[ComponentPayload]{NameComponentAdded}
	ComponentRemoved = Key[ComponentPayload]{NameComponentRemoved}
	ComponentError   = Key[ComponentErrorPayload]{NameComponentError}
	Resize           = Key[ResizePayload]{NameResize}
	FPSSample        = Key[FPSSamplePayload]{NameFPSSample}
	FPSDrop          = Key[FPSDropPayload]{NameFPSDrop}
)

type RenderPayload struct {
	Timestamp time.Duration
}

// FramePayload is pooled by the scheduler. Subscribers must not keep the
// pointer after their callback returns.
type FramePayload struct {
	DeltaTime float32
	Timestamp time.Duration
}

// Reset restores the canonical zero state before the payload is reused.
func (p *FramePayload) Reset() {
	*p = FramePayload{}
}

type ComponentPayload struct {
	Component lifecycle.Component
}

type ComponentErrorPayload struct {
	Component lifecycle.Component
	Hook      lifecycle.Hook
	Err       error
}

type ResizePayload struct {
	Width  int
	Height int
}

type FPSSamplePayload struct {
	FPS float64
}

type FPSDropPayload struct {
	Current  float64
	Previous float64
}
