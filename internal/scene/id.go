package scene

import "fmt"

// NodeID names a node for as long as it lives. The low 32 bits are the
// node's slot in its graph's table; the high 32 bits count the nodes that
// held the slot before it, so an id kept past its node's destruction never
// resolves to the slot's next tenant. The zero NodeID names no node.
type NodeID uint64

func makeNodeID(slot, gen uint32) NodeID { return NodeID(uint64(gen)<<32 | uint64(slot)) }

// Slot returns the node's position in its graph's table.
func (id NodeID) Slot() uint32 { return uint32(id) }

// Generation returns how many earlier nodes held the same slot.
func (id NodeID) Generation() uint32 { return uint32(id >> 32) }

func (id NodeID) IsZero() bool { return id == 0 }

func (id NodeID) String() string {
	return fmt.Sprintf("node#%d.%d", id.Slot(), id.Generation())
}

type nodeSlot struct {
	gen  uint32
	node *Node // nil while free
}

// nodeTable holds a graph's live nodes by slot. Slot 0 is never handed out.
// Freed slots are reused newest first.
type nodeTable struct {
	slots []nodeSlot
	free  []uint32
	live  int
}

func newNodeTable() *nodeTable {
	return &nodeTable{slots: make([]nodeSlot, 1, 64)}
}

// insert places n in a free slot and returns its id.
func (t *nodeTable) insert(n *Node) NodeID {
	var i uint32
	if k := len(t.free); k > 0 {
		i = t.free[k-1]
		t.free = t.free[:k-1]
	} else {
		i = uint32(len(t.slots))
		t.slots = append(t.slots, nodeSlot{})
	}
	t.slots[i].node = n
	t.live++
	return makeNodeID(i, t.slots[i].gen)
}

// get returns the node id names, or nil once that node is gone.
func (t *nodeTable) get(id NodeID) *Node {
	i := id.Slot()
	if i == 0 || int(i) >= len(t.slots) {
		return nil
	}
	s := t.slots[i]
	if s.gen != id.Generation() {
		return nil
	}
	return s.node
}

// remove frees id's slot. Stale ids are ignored.
func (t *nodeTable) remove(id NodeID) {
	if t.get(id) == nil {
		return
	}
	s := &t.slots[id.Slot()]
	s.node = nil
	s.gen++
	t.free = append(t.free, id.Slot())
	t.live--
}

func (t *nodeTable) len() int { return t.live }
