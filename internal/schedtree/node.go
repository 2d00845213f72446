package schedtree

import (
	"github.com/stencilkit/polytile/internal/poly"
)

// Kind discriminates the node types of a schedule tree.
type Kind int

const (
	KindDomain Kind = iota
	KindBand
	KindSequence
	KindFilter
	KindExpansion
	KindContext
	KindLeaf
)

func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindBand:
		return "band"
	case KindSequence:
		return "sequence"
	case KindFilter:
		return "filter"
	case KindExpansion:
		return "expansion"
	case KindContext:
		return "context"
	case KindLeaf:
		return "leaf"
	}
	return "unknown"
}

// Node is one node of a schedule tree. Which fields are meaningful
// depends on Kind. Nodes are treated as immutable once built; rewrites
// go through Cursor.Replace, which copies the spine.
type Node struct {
	Kind Kind

	// KindDomain: the statement instances scheduled by the subtree.
	Domain poly.Set

	// KindBand: the partial schedule.
	Band *BandInfo

	// KindFilter: the instances the child subtree applies to.
	Filter poly.Set

	// KindExpansion: Expansion maps each instance to the copies that
	// execute below this node; Contraction maps copies back to the
	// original instance (empty when copies are pure recomputation).
	Expansion   poly.Map
	Contraction poly.Map

	// KindContext: constraints on symbolic constants.
	Context poly.Set

	Children []*Node
}

// NewLeaf returns a leaf node.
func NewLeaf() *Node { return &Node{Kind: KindLeaf} }

// NewDomain returns a domain node over dom with the given child.
func NewDomain(dom poly.Set, child *Node) *Node {
	return &Node{Kind: KindDomain, Domain: dom, Children: []*Node{child}}
}

// NewBand returns a band node with the given members and child.
func NewBand(b *BandInfo, child *Node) *Node {
	return &Node{Kind: KindBand, Band: b, Children: []*Node{child}}
}

// NewFilter returns a filter node restricting its child to s.
func NewFilter(s poly.Set, child *Node) *Node {
	return &Node{Kind: KindFilter, Filter: s, Children: []*Node{child}}
}

// NewSequence returns a sequence node executing the given filter
// children in order.
func NewSequence(filters ...*Node) *Node {
	return &Node{Kind: KindSequence, Children: filters}
}

// NewExpansion returns an expansion node above child.
func NewExpansion(expansion, contraction poly.Map, child *Node) *Node {
	return &Node{
		Kind:        KindExpansion,
		Expansion:   expansion,
		Contraction: contraction,
		Children:    []*Node{child},
	}
}

// NewContext returns a context node above child.
func NewContext(ctx poly.Set, child *Node) *Node {
	return &Node{Kind: KindContext, Context: ctx, Children: []*Node{child}}
}

// Child returns child i.
func (n *Node) Child(i int) *Node { return n.Children[i] }

// NChildren returns the number of children.
func (n *Node) NChildren() int { return len(n.Children) }

// shallowCopy copies the node and its child slice header.
func (n *Node) shallowCopy() *Node {
	c := *n
	c.Children = make([]*Node, len(n.Children))
	copy(c.Children, n.Children)
	if n.Band != nil {
		c.Band = n.Band.Clone()
	}
	return &c
}

// RootDomain returns the instance set of the tree's domain root.
func (n *Node) RootDomain() poly.Set {
	if n.Kind == KindDomain {
		return n.Domain
	}
	return poly.EmptySet()
}

// SubtreeContraction collects the contraction of every expansion node
// in the subtree rooted at n, composing nested expansions. It returns
// the identity relation over dom when the subtree has no expansions.
func SubtreeContraction(n *Node, dom poly.Set) poly.Map {
	contr := identityOn(dom)
	return collectContraction(n, contr)
}

func collectContraction(n *Node, contr poly.Map) poly.Map {
	if n.Kind == KindExpansion {
		contr = n.Contraction.ApplyRange(contr)
	}
	for _, c := range n.Children {
		contr = collectContraction(c, contr)
	}
	return contr
}

func identityOn(dom poly.Set) poly.Map {
	var pieces []poly.BasicMap
	for _, name := range dom.TupleNames() {
		for _, p := range dom.PiecesFor(name) {
			pieces = append(pieces, poly.IdentityBasicMap(p.Space()))
			break
		}
	}
	return poly.MapFrom(pieces...).IntersectDomain(dom).IntersectRange(dom)
}
