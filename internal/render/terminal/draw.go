package terminal

import (
	"github.com/chewxy/math32"
	"github.com/framecore/framecore/internal/scene"
	"github.com/gdamore/tcell/v2"
)

// nodeColor maps a node's 0xRRGGBB colour to tcell. Zero means the
// terminal's default foreground.
func nodeColor(c uint32) tcell.Color {
	if c == 0 {
		return tcell.ColorDefault
	}
	return tcell.NewHexColor(int32(c & 0xFFFFFF))
}

// DrawScene rasterizes every visible node with a glyph under root into b.
// The camera's world position maps to the centre of the buffer and its
// scale zooms.
func DrawScene(b *Buffer, root, camera *scene.Node) {
	if root == nil {
		return
	}
	var cx, cy float32
	zoom := float32(1)
	if camera != nil {
		w := camera.World()
		cx, cy = w.X, w.Y
		if w.Scale > 0 {
			zoom = w.Scale
		}
	}
	ox, oy := float32(b.width)/2, float32(b.height)/2
	drawNode(b, root, cx, cy, ox, oy, zoom)
}

func drawNode(b *Buffer, n *scene.Node, cx, cy, ox, oy, zoom float32) {
	if !n.Visible {
		return
	}
	if n.Glyph != 0 {
		x, y := n.WorldPosition()
		sx := int(math32.Floor((x-cx)*zoom + ox))
		sy := int(math32.Floor((y-cy)*zoom + oy))
		b.Set(sx, sy, Cell{Rune: n.Glyph, FG: nodeColor(n.Color), BG: tcell.ColorDefault})
	}
	for _, c := range n.Children() {
		drawNode(b, c, cx, cy, ox, oy, zoom)
	}
}

// blit copies b onto the screen and shows it.
func blit(screen tcell.Screen, b *Buffer) {
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			c := b.cells[y*b.width+x]
			r := c.Rune
			if r == 0 {
				r = ' '
			}
			screen.SetContent(x, y, r, nil, c.Style())
		}
	}
	screen.Show()
}
