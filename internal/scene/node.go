package scene

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/framecore/framecore/internal/core/lifecycle"
)

var (
	ErrUnbound   = errors.New("scene graph has no component binder")
	ErrDestroyed = errors.New("scene node destroyed")
	ErrCycle     = errors.New("scene node cannot be its own ancestor")
)

// Transform is a node's placement relative to its parent. Rotation is in
// radians.
type Transform struct {
	X, Y     float32
	Rotation float32
	Scale    float32
}

// Node is one element of the retained scene graph and a component host.
type Node struct {
	Name      string
	Transform Transform
	Glyph     rune
	Color     uint32 // 0xRRGGBB
	Visible   bool

	id         NodeID
	graph      *Graph
	parent     *Node
	children   []*Node
	components []lifecycle.Component
	doomed     bool
}

func (n *Node) HostName() string { return n.Name }
func (n *Node) ID() NodeID       { return n.id }
func (n *Node) Parent() *Node    { return n.parent }

// Children returns the node's children. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Components returns the components attached to this node, oldest first.
func (n *Node) Components() []lifecycle.Component { return n.components }

// Alive reports whether the node still belongs to its graph.
func (n *Node) Alive() bool {
	return n.graph != nil && n.graph.nodes.get(n.id) == n
}

// Destroy queues n for destruction at the end of the frame.
func (n *Node) Destroy() {
	if n.graph != nil {
		n.graph.MarkForDestruction(n)
	}
}

// AddComponent attaches c to n and registers it with the graph's binder.
func (n *Node) AddComponent(c lifecycle.Component) error {
	if !n.Alive() || n.doomed {
		return fmt.Errorf("add %s to %s: %w", c.Name(), n.Name, ErrDestroyed)
	}
	if n.graph.binder == nil {
		return fmt.Errorf("add %s to %s: %w", c.Name(), n.Name, ErrUnbound)
	}
	if err := n.graph.binder.AddComponent(c, n); err != nil {
		return fmt.Errorf("add %s to %s: %w", c.Name(), n.Name, err)
	}
	n.components = append(n.components, c)
	return nil
}

// RemoveComponent detaches c from n and unregisters it. It reports whether
// c was attached here.
func (n *Node) RemoveComponent(c lifecycle.Component) bool {
	if !n.Detach(c) {
		return false
	}
	if n.graph != nil && n.graph.binder != nil {
		n.graph.binder.RemoveComponent(c)
	}
	return true
}

// Detach drops c from n's component list without unregistering it. The
// binder calls it when c is removed from the binder side.
func (n *Node) Detach(c lifecycle.Component) bool {
	for i, cur := range n.components {
		if cur == c {
			n.components = append(n.components[:i], n.components[i+1:]...)
			return true
		}
	}
	return false
}

// SetParent moves n under p, keeping its local transform.
func (n *Node) SetParent(p *Node) error {
	if p == nil {
		p = n.graph.root
	}
	for a := p; a != nil; a = a.parent {
		if a == n {
			return fmt.Errorf("reparent %s under %s: %w", n.Name, p.Name, ErrCycle)
		}
	}
	n.detach()
	n.parent = p
	p.children = append(p.children, n)
	return nil
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// World composes the transforms from the root down to n.
func (n *Node) World() Transform {
	if n.parent == nil {
		return n.Transform
	}
	p := n.parent.World()
	sin, cos := math32.Sin(p.Rotation), math32.Cos(p.Rotation)
	x, y := n.Transform.X*p.Scale, n.Transform.Y*p.Scale
	return Transform{
		X:        p.X + x*cos - y*sin,
		Y:        p.Y + x*sin + y*cos,
		Rotation: p.Rotation + n.Transform.Rotation,
		Scale:    p.Scale * n.Transform.Scale,
	}
}

// WorldPosition returns the node's position in root space.
func (n *Node) WorldPosition() (x, y float32) {
	w := n.World()
	return w.X, w.Y
}
