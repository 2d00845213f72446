package schedtree

// Cursor is a position in a schedule tree. It remembers the path from
// the root so a replacement at the position can rebuild the spine
// without touching the rest of the tree.
type Cursor struct {
	nodes []*Node
	idx   []int
}

// At returns a cursor positioned at root.
func At(root *Node) *Cursor {
	return &Cursor{nodes: []*Node{root}}
}

// Node returns the node the cursor points at.
func (c *Cursor) Node() *Node { return c.nodes[len(c.nodes)-1] }

// Root returns the root of the tree the cursor was built from.
func (c *Cursor) Root() *Node { return c.nodes[0] }

// Descend returns a cursor at child i of the current node.
func (c *Cursor) Descend(i int) *Cursor {
	n := &Cursor{
		nodes: append(append([]*Node(nil), c.nodes...), c.Node().Child(i)),
		idx:   append(append([]int(nil), c.idx...), i),
	}
	return n
}

// Parent returns a cursor at the parent of the current node. It must
// not be called at the root.
func (c *Cursor) Parent() *Cursor {
	return &Cursor{
		nodes: append([]*Node(nil), c.nodes[:len(c.nodes)-1]...),
		idx:   append([]int(nil), c.idx[:len(c.idx)-1]...),
	}
}

// Replace substitutes n for the current node and returns the new root.
// Ancestors along the path are copied; siblings are shared.
func (c *Cursor) Replace(n *Node) *Node {
	for i := len(c.nodes) - 2; i >= 0; i-- {
		p := c.nodes[i].shallowCopy()
		p.Children[c.idx[i]] = n
		n = p
	}
	return n
}

// FindBand returns a cursor at the first band node in preorder, or
// false when the tree has none.
func FindBand(root *Node) (*Cursor, bool) {
	return findKind(At(root), KindBand)
}

func findKind(c *Cursor, k Kind) (*Cursor, bool) {
	if c.Node().Kind == k {
		return c, true
	}
	for i := 0; i < c.Node().NChildren(); i++ {
		if r, ok := findKind(c.Descend(i), k); ok {
			return r, true
		}
	}
	return nil, false
}
