package scene

import "github.com/framecore/framecore/internal/core/lifecycle"

// Binder registers components with whatever drives their lifecycle.
type Binder interface {
	AddComponent(c lifecycle.Component, host lifecycle.Host) error
	RemoveComponent(c lifecycle.Component) bool
}

// Graph owns the node tree, node id allocation, and a deferred destruction
// queue flushed once per frame.
type Graph struct {
	nodes        *nodeTable
	root         *Node
	binder       Binder
	destroyQueue []NodeID
}

func NewGraph() *Graph {
	g := &Graph{
		nodes:        newNodeTable(),
		destroyQueue: make([]NodeID, 0, 16),
	}
	g.root = g.create("root")
	return g
}

// Bind sets the binder used by Node.AddComponent and node destruction.
func (g *Graph) Bind(b Binder) { g.binder = b }

func (g *Graph) Root() *Node { return g.root }

// Len returns the number of live nodes, root included.
func (g *Graph) Len() int { return g.nodes.len() }

func (g *Graph) create(name string) *Node {
	n := &Node{
		Name:      name,
		Transform: Transform{Scale: 1},
		Visible:   true,
		graph:     g,
	}
	n.id = g.nodes.insert(n)
	return n
}

// NewNode creates a visible node under parent, or under the root when
// parent is nil.
func (g *Graph) NewNode(name string, parent *Node) *Node {
	if parent == nil {
		parent = g.root
	}
	n := g.create(name)
	n.parent = parent
	parent.children = append(parent.children, n)
	return n
}

// Lookup returns the live node for id.
func (g *Graph) Lookup(id NodeID) (*Node, bool) {
	n := g.nodes.get(id)
	return n, n != nil
}

// Find returns the first node named name in depth-first order.
func (g *Graph) Find(name string) *Node {
	var found *Node
	g.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits the tree depth-first, parents before children. Returning
// false from fn skips the node's subtree.
func (g *Graph) Walk(fn func(n *Node) bool) {
	walk(g.root, fn)
}

func walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		walk(c, fn)
	}
}

// MarkForDestruction queues n and its subtree for removal at the next
// flush. The root cannot be destroyed.
func (g *Graph) MarkForDestruction(n *Node) {
	if n == g.root || n.doomed || !n.Alive() {
		return
	}
	n.doomed = true
	g.destroyQueue = append(g.destroyQueue, n.id)
}

// FlushDestroyQueue destroys every queued node, children first, removing
// their components newest first. It returns the number of nodes destroyed.
func (g *Graph) FlushDestroyQueue() int {
	destroyed := 0
	for i := 0; i < len(g.destroyQueue); i++ {
		n, ok := g.Lookup(g.destroyQueue[i])
		if !ok {
			continue
		}
		n.detach()
		destroyed += g.destroy(n)
	}
	for i := range g.destroyQueue {
		g.destroyQueue[i] = 0
	}
	g.destroyQueue = g.destroyQueue[:0]
	return destroyed
}

func (g *Graph) destroy(n *Node) int {
	count := 0
	for len(n.children) > 0 {
		c := n.children[len(n.children)-1]
		n.children = n.children[:len(n.children)-1]
		c.parent = nil
		count += g.destroy(c)
	}
	for len(n.components) > 0 {
		n.RemoveComponent(n.components[len(n.components)-1])
	}
	g.nodes.remove(n.id)
	return count + 1
}

// Clear destroys every node except the root.
func (g *Graph) Clear() {
	for _, c := range append([]*Node(nil), g.root.children...) {
		g.MarkForDestruction(c)
	}
	g.FlushDestroyQueue()
}
