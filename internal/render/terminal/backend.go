package terminal

import (
	"errors"

	"github.com/framecore/framecore/internal/scene"
	"github.com/gdamore/tcell/v2"
)

// ErrNoScreen is returned when drawing without a screen.
var ErrNoScreen = errors.New("terminal backend has no screen")

// Backend draws the scene straight to a tcell screen. It is the direct
// draw used when the effect pipeline is off.
type Backend struct {
	screen tcell.Screen
	frame  *Buffer
}

func NewBackend(screen tcell.Screen) *Backend {
	b := &Backend{screen: screen, frame: NewBuffer(0, 0)}
	if screen != nil {
		b.frame.SetSize(screen.Size())
	}
	return b
}

func (b *Backend) Screen() tcell.Screen { return b.screen }

func (b *Backend) Render(root, camera *scene.Node) error {
	if b.screen == nil {
		return ErrNoScreen
	}
	b.frame.Clear()
	DrawScene(b.frame, root, camera)
	blit(b.screen, b.frame)
	return nil
}

func (b *Backend) SetSize(w, h int) {
	b.frame.SetSize(w, h)
}
