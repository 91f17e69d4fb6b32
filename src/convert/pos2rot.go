package convert

import (
	"fmt"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RotationsFromPositions infers the local rotation stream of node and its
// descendants from the position streams of m. accumulatedInverse takes world
// directions into the frame of node's parent; nil means identity.
//
// A joint with one child gets the shortest rotation taking the child's rest
// direction onto its observed direction. A joint with several children gets
// the single rotation that best aligns all of them at once. Leaves get the
// identity. A child with a zero rest offset carries no direction, so inference
// for a single-child joint stops there.
func RotationsFromPositions(m *motion.Data, node string, accumulatedInverse []quat.Number) (map[string][]quat.Number, error) {
	tree := m.Tree()
	if !tree.Has(node) {
		return nil, fmt.Errorf("%w: %q", kinematics.ErrNodeNotFound, node)
	}
	frames := m.FrameCount()
	if accumulatedInverse == nil {
		accumulatedInverse = rotation.Identities(frames)
	} else if len(accumulatedInverse) != frames {
		return nil, fmt.Errorf("%w: %d rotations for %d frames", ErrFrameMismatch, len(accumulatedInverse), frames)
	}

	out := make(map[string][]quat.Number)
	if err := infer(m, tree, node, accumulatedInverse, out); err != nil {
		return nil, err
	}
	return out, nil
}

// InferRotations infers local rotations for the whole tree from its root.
func InferRotations(m *motion.Data) (map[string][]quat.Number, error) {
	root, ok := m.Tree().Root()
	if !ok {
		return nil, kinematics.ErrNoRoot
	}
	return RotationsFromPositions(m, root.Name(), nil)
}

func infer(m *motion.Data, tree *kinematics.Tree, node string, accInv []quat.Number, out map[string][]quat.Number) error {
	frames := m.FrameCount()
	children := tree.Children(node)

	switch len(children) {
	case 0:
		out[node] = rotation.Identities(frames)
		return nil

	case 1:
		child := children[0]
		rest := child.Offset()
		if r3.Norm(rest) == 0 {
			out[node] = rotation.Identities(frames)
			return nil
		}
		observed, err := localOffsets(m, node, child.Name(), accInv)
		if err != nil {
			return err
		}
		rots := make([]quat.Number, frames)
		for f := range rots {
			rots[f] = rotation.ShortestArc(rest, observed[f])
		}
		out[node] = rots
		return infer(m, tree, child.Name(), childInverse(rots, accInv), out)
	}

	var rest []r3.Vec
	var observed [][]r3.Vec
	for _, child := range children {
		offset := child.Offset()
		if r3.Norm(offset) == 0 {
			continue
		}
		local, err := localOffsets(m, node, child.Name(), accInv)
		if err != nil {
			return err
		}
		rest = append(rest, r3.Unit(offset))
		observed = append(observed, local)
	}

	rots := make([]quat.Number, frames)
	to := make([]r3.Vec, len(rest))
	for f := range rots {
		for i := range observed {
			to[i] = unitOrZero(observed[i][f])
		}
		rots[f] = rotation.Align(rest, to)
	}
	out[node] = rots

	next := childInverse(rots, accInv)
	for _, child := range children {
		if err := infer(m, tree, child.Name(), next, out); err != nil {
			return err
		}
	}
	return nil
}

// localOffsets returns child - node per frame, expressed in the parent frame
// of node.
func localOffsets(m *motion.Data, node, child string, accInv []quat.Number) ([]r3.Vec, error) {
	from := m.Positions(node)
	if from == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingPositions, node)
	}
	to := m.Positions(child)
	if to == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingPositions, child)
	}
	out := make([]r3.Vec, len(from))
	for f := range out {
		out[f] = rotation.Rotate(accInv[f], r3.Sub(to[f], from[f]))
	}
	return out, nil
}

func childInverse(rots, accInv []quat.Number) []quat.Number {
	out := make([]quat.Number, len(rots))
	for f := range out {
		out[f] = rotation.Mul(rotation.Inverse(rots[f]), accInv[f])
	}
	return out
}

func unitOrZero(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return v
	}
	return r3.Unit(v)
}
