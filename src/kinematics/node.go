// Package kinematics describes skeletons as immutable, name-indexed trees of
// joints. Relationships between joints are derived by looking up parent
// names; nodes never hold references to each other.
package kinematics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyName is returned when a node is created without a name.
var ErrEmptyName = errors.New("node name must not be empty")

// Node is an immutable joint descriptor. A node with an empty parent name is
// a root. Node is a value type: offsets are copied with it and two nodes are
// equal (==) when name, parent and offset are equal.
type Node struct {
	name   string
	parent string
	offset r3.Vec
}

// NodeParams is the loose form of a node used by FromParams. Offset is
// optional and defaults to the zero vector.
type NodeParams struct {
	Name       string
	ParentName string
	Offset     *r3.Vec
}

// NewNode creates a node. Pass an empty parent for a root node.
func NewNode(name, parent string, offset r3.Vec) (Node, error) {
	if name == "" {
		return Node{}, ErrEmptyName
	}
	if name == parent {
		return Node{}, fmt.Errorf("%w: node %q is its own parent", ErrCircularReference, name)
	}
	return Node{name: name, parent: parent, offset: offset}, nil
}

// MustNode is NewNode for static skeleton definitions; it panics on error.
func MustNode(name, parent string, offset r3.Vec) Node {
	n, err := NewNode(name, parent, offset)
	if err != nil {
		panic(err)
	}
	return n
}

// Name returns the node name.
func (n Node) Name() string { return n.name }

// Parent returns the parent name, or "" for a root.
func (n Node) Parent() string { return n.parent }

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.parent == "" }

// Offset returns the rest offset from the parent joint.
func (n Node) Offset() r3.Vec { return n.offset }

// WithOffset returns a copy of n with a new rest offset.
func (n Node) WithOffset(offset r3.Vec) Node {
	n.offset = offset
	return n
}

// WithParent returns a copy of n attached to another parent; "" makes it a root.
func (n Node) WithParent(parent string) (Node, error) {
	return NewNode(n.name, parent, n.offset)
}

// WithName returns a renamed copy of n.
func (n Node) WithName(name string) (Node, error) {
	return NewNode(name, n.parent, n.offset)
}

func (n Node) String() string {
	if n.IsRoot() {
		return fmt.Sprintf("Node(%s)", n.name)
	}
	return fmt.Sprintf("Node(%s <- %s)", n.name, n.parent)
}
