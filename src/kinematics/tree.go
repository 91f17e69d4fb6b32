package kinematics

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNoRoot means no node has an empty parent.
	ErrNoRoot = errors.New("kinematic tree has no root node")
	// ErrNotConnected means there are several roots or a parent is missing.
	ErrNotConnected = errors.New("kinematic tree is not connected")
	// ErrCircularReference means a parent walk revisits a node.
	ErrCircularReference = errors.New("circular reference in kinematic tree")
	// ErrNodeNotFound is returned by lookups and edits of unknown nodes.
	ErrNodeNotFound = errors.New("node not found in kinematic tree")
	// ErrDuplicateNode means two nodes share a name.
	ErrDuplicateNode = errors.New("duplicate node name")
)

// Tree is an immutable, validated kinematic tree. Besides the name index it
// remembers the order nodes were supplied in, which fixes the order of
// Children and therefore the order joints are written to a BVH file.
type Tree struct {
	nodes    map[string]Node
	order    []string
	children map[string][]string
	root     string
}

// FromNodes builds and validates a tree.
func FromNodes(nodes []Node) (*Tree, error) {
	t := &Tree{
		nodes: make(map[string]Node, len(nodes)),
		order: make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if n.name == "" {
			return nil, ErrEmptyName
		}
		if _, ok := t.nodes[n.name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, n.name)
		}
		t.nodes[n.name] = n
		t.order = append(t.order, n.name)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.children = make(map[string][]string, len(t.order))
	for _, name := range t.order {
		if n := t.nodes[name]; !n.IsRoot() {
			t.children[n.parent] = append(t.children[n.parent], name)
		}
	}
	return t, nil
}

// FromParams builds a tree from loose parameters. Exactly one entry must have
// an empty parent name; this is checked before any node is created.
func FromParams(params []NodeParams) (*Tree, error) {
	roots := 0
	for _, p := range params {
		if p.ParentName == "" {
			roots++
		}
	}
	switch {
	case roots == 0:
		return nil, fmt.Errorf("%w: no entry without a parent", ErrNoRoot)
	case roots > 1:
		return nil, fmt.Errorf("%w: %d entries without a parent", ErrNotConnected, roots)
	}

	nodes := make([]Node, 0, len(params))
	for _, p := range params {
		var offset r3.Vec
		if p.Offset != nil {
			offset = *p.Offset
		}
		n, err := NewNode(p.Name, p.ParentName, offset)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return FromNodes(nodes)
}

// validate checks the root count first, then walks every node to the root.
// path holds the names on the current walk; done holds nodes already known
// to reach the root so no node is walked twice.
func (t *Tree) validate() error {
	if len(t.nodes) == 0 {
		return nil
	}

	var roots []string
	for _, name := range t.order {
		if t.nodes[name].IsRoot() {
			roots = append(roots, name)
		}
	}
	if len(roots) == 0 {
		return ErrNoRoot
	}
	if len(roots) > 1 {
		return fmt.Errorf("%w: multiple root nodes %s", ErrNotConnected, strings.Join(roots, ", "))
	}
	t.root = roots[0]

	done := make(map[string]bool, len(t.nodes))
	for _, name := range t.order {
		if done[name] {
			continue
		}
		path := make(map[string]bool)
		current := name
		for !done[current] {
			if path[current] {
				return fmt.Errorf("%w: involving node %q", ErrCircularReference, current)
			}
			path[current] = true
			n := t.nodes[current]
			if n.IsRoot() {
				break
			}
			if _, ok := t.nodes[n.parent]; !ok {
				return fmt.Errorf("%w: parent %q of node %q not found", ErrNotConnected, n.parent, current)
			}
			current = n.parent
		}
		for p := range path {
			done[p] = true
		}
	}
	return nil
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Has reports whether a node exists.
func (t *Tree) Has(name string) bool {
	_, ok := t.nodes[name]
	return ok
}

// Node returns the node with the given name.
func (t *Tree) Node(name string) (Node, error) {
	n, ok := t.nodes[name]
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	return n, nil
}

// Nodes returns all nodes in declaration order.
func (t *Tree) Nodes() []Node {
	out := make([]Node, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.nodes[name])
	}
	return out
}

// Names returns all node names in declaration order.
func (t *Tree) Names() []string {
	return append([]string(nil), t.order...)
}

// Root returns the root node. ok is false only for an empty tree.
func (t *Tree) Root() (Node, bool) {
	if t.root == "" {
		return Node{}, false
	}
	return t.nodes[t.root], true
}

// Parent returns the parent of a node; ok is false for the root or an unknown name.
func (t *Tree) Parent(name string) (Node, bool) {
	n, ok := t.nodes[name]
	if !ok || n.IsRoot() {
		return Node{}, false
	}
	p, ok := t.nodes[n.parent]
	return p, ok
}

// Children returns the direct children of a node in declaration order.
func (t *Tree) Children(name string) []Node {
	names := t.children[name]
	if len(names) == 0 {
		return nil
	}
	out := make([]Node, len(names))
	for i, child := range names {
		out[i] = t.nodes[child]
	}
	return out
}

// Siblings returns the other children of the node's parent.
func (t *Tree) Siblings(name string) []Node {
	p, ok := t.Parent(name)
	if !ok {
		return nil
	}
	var out []Node
	for _, c := range t.Children(p.name) {
		if c.name != name {
			out = append(out, c)
		}
	}
	return out
}

// HasChildren reports whether any node names this node as parent.
func (t *Tree) HasChildren(name string) bool {
	return len(t.children[name]) > 0
}

// IsLeaf reports whether the node has no children.
func (t *Tree) IsLeaf(name string) bool { return !t.HasChildren(name) }

// HasSiblings reports whether the node's parent has other children.
func (t *Tree) HasSiblings(name string) bool {
	return len(t.Siblings(name)) > 0
}

// Depth returns the number of parent links between the node and the root.
func (t *Tree) Depth(name string) (int, error) {
	n, ok := t.nodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	depth := 0
	for !n.IsRoot() {
		n = t.nodes[n.parent]
		depth++
	}
	return depth, nil
}

// AddNode returns a new tree with node added, or replaced if the name exists.
func (t *Tree) AddNode(node Node) (*Tree, error) {
	nodes := t.Nodes()
	for i, n := range nodes {
		if n.name == node.name {
			nodes[i] = node
			return FromNodes(nodes)
		}
	}
	return FromNodes(append(nodes, node))
}

// RemoveNode returns a new tree without the node and all of its descendants.
func (t *Tree) RemoveNode(name string) (*Tree, error) {
	if !t.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	removed := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, c := range t.Children(current) {
			if !removed[c.name] {
				removed[c.name] = true
				queue = append(queue, c.name)
			}
		}
	}

	nodes := make([]Node, 0, len(t.order))
	for _, n := range t.Nodes() {
		if !removed[n.name] {
			nodes = append(nodes, n)
		}
	}
	return FromNodes(nodes)
}

// WithNodes returns a new tree where each given node replaces the node of the
// same name. Unknown names are an error.
func (t *Tree) WithNodes(replacements ...Node) (*Tree, error) {
	byName := make(map[string]Node, len(replacements))
	for _, r := range replacements {
		if !t.Has(r.name) {
			return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, r.name)
		}
		byName[r.name] = r
	}
	nodes := t.Nodes()
	for i, n := range nodes {
		if r, ok := byName[n.name]; ok {
			nodes[i] = r
		}
	}
	return FromNodes(nodes)
}

func (t *Tree) String() string {
	return fmt.Sprintf("Tree(root=%q, nodes=%d)", t.root, len(t.nodes))
}
