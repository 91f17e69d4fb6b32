// Package convert turns local rotation streams into world positions and
// infers local rotations back from observed positions.
package convert

import (
	"errors"
	"fmt"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrFrameMismatch means an input stream is not FrameCount long.
	ErrFrameMismatch = errors.New("stream length does not match frame count")
	// ErrMissingPositions means a joint needed for inference has no positions.
	ErrMissingPositions = errors.New("missing position data")
)

// PositionsFromRotations walks the subtree below node and returns the world
// position stream of every joint it reaches. parentPositions is the position
// of node itself, accumulated the world orientation of its parent (nil means
// identity). Offsets are multiplied by scale.
//
// A joint without rotation data cannot drive its subtree: it contributes
// nothing, although its parent has already placed it.
func PositionsFromRotations(m *motion.Data, parentPositions []r3.Vec, node string, accumulated []quat.Number, scale float64) (map[string][]r3.Vec, error) {
	tree := m.Tree()
	if !tree.Has(node) {
		return nil, fmt.Errorf("%w: %q", kinematics.ErrNodeNotFound, node)
	}
	frames := m.FrameCount()
	if len(parentPositions) != frames {
		return nil, fmt.Errorf("%w: %d positions for %d frames", ErrFrameMismatch, len(parentPositions), frames)
	}
	if accumulated == nil {
		accumulated = rotation.Identities(frames)
	} else if len(accumulated) != frames {
		return nil, fmt.Errorf("%w: %d rotations for %d frames", ErrFrameMismatch, len(accumulated), frames)
	}

	out := make(map[string][]r3.Vec)
	forward(m, tree, node, parentPositions, accumulated, scale, out)
	return out, nil
}

func forward(m *motion.Data, tree *kinematics.Tree, node string, position []r3.Vec, accumulated []quat.Number, scale float64, out map[string][]r3.Vec) {
	if !m.HasRotations(node) {
		return
	}
	out[node] = position

	children := tree.Children(node)
	if len(children) == 0 {
		return
	}

	local := m.Rotations(node)
	world := make([]quat.Number, len(local))
	for f, q := range local {
		world[f] = rotation.Mul(accumulated[f], q)
	}

	for _, child := range children {
		offset := child.Offset()
		childPos := make([]r3.Vec, len(position))
		for f := range childPos {
			childPos[f] = r3.Add(position[f], r3.Scale(scale, rotation.Rotate(world[f], offset)))
		}
		out[child.Name()] = childPos
		forward(m, tree, child.Name(), childPos, world, scale, out)
	}
}

// ForwardKinematics returns world positions for the whole tree. A nil
// rootPositions uses the stored root positions, or the origin when the root
// has none.
func ForwardKinematics(m *motion.Data, rootPositions []r3.Vec) (map[string][]r3.Vec, error) {
	return ScaledForwardKinematics(m, rootPositions, 1)
}

// ScaledForwardKinematics is ForwardKinematics with every rest offset
// multiplied by scale.
func ScaledForwardKinematics(m *motion.Data, rootPositions []r3.Vec, scale float64) (map[string][]r3.Vec, error) {
	root, ok := m.Tree().Root()
	if !ok {
		return nil, kinematics.ErrNoRoot
	}
	if rootPositions == nil {
		rootPositions = m.Positions(root.Name())
		if rootPositions == nil {
			rootPositions = make([]r3.Vec, m.FrameCount())
		}
	}
	return PositionsFromRotations(m, rootPositions, root.Name(), nil, scale)
}
