package convert

import (
	"fmt"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// AdjustTree rebuilds the rest offsets of tree from observed positions. Each
// bone keeps its direction at the reference frame and takes the mean of its
// length over all frames. The root offset becomes the root position at frame.
func AdjustTree(tree *kinematics.Tree, positions map[string][]r3.Vec, frame int) (*kinematics.Tree, error) {
	nodes := tree.Nodes()
	adjusted := make([]kinematics.Node, 0, len(nodes))
	for _, node := range nodes {
		pos, ok := positions[node.Name()]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingPositions, node.Name())
		}
		if frame < 0 || frame >= len(pos) {
			return nil, fmt.Errorf("%w: frame %d out of %d for %q", ErrFrameMismatch, frame, len(pos), node.Name())
		}
		if node.IsRoot() {
			adjusted = append(adjusted, node.WithOffset(pos[frame]))
			continue
		}

		parentPos, ok := positions[node.Parent()]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingPositions, node.Parent())
		}
		if len(parentPos) != len(pos) {
			return nil, fmt.Errorf("%w: %q has %d frames, parent %q has %d", ErrFrameMismatch, node.Name(), len(pos), node.Parent(), len(parentPos))
		}

		lengths := make([]float64, len(pos))
		for f := range pos {
			lengths[f] = r3.Norm(r3.Sub(pos[f], parentPos[f]))
		}
		meanLength := stat.Mean(lengths, nil)

		offset := r3.Sub(pos[frame], parentPos[frame])
		if lengths[frame] > 0 {
			offset = r3.Scale(meanLength/lengths[frame], offset)
		}
		adjusted = append(adjusted, node.WithOffset(offset))
	}
	return kinematics.FromNodes(adjusted)
}

// Retarget infers local rotations from the position streams of m and returns
// motion data ready for the BVH saver: the root keeps its positions and every
// joint carries a rotation stream. Joints the inference cannot reach, below a
// zero-length bone, get the identity.
func Retarget(m *motion.Data) (*motion.Data, error) {
	tree := m.Tree()
	root, ok := tree.Root()
	if !ok {
		return nil, kinematics.ErrNoRoot
	}
	rots, err := InferRotations(m)
	if err != nil {
		return nil, err
	}
	for _, name := range tree.Names() {
		if _, ok := rots[name]; !ok {
			rots[name] = rotation.Identities(m.FrameCount())
		}
	}

	rootPos := m.Positions(root.Name())
	if rootPos == nil {
		rootPos = make([]r3.Vec, m.FrameCount())
	}
	return motion.FromVectors(tree, map[string][]r3.Vec{root.Name(): rootPos}, rots, m.FrameTime())
}

// FromPositions builds motion data from observed positions, optionally
// refitting the rest offsets of tree at frame 0 first, and retargets it.
func FromPositions(tree *kinematics.Tree, positions map[string][]r3.Vec, frameTime float64, adjust bool) (*motion.Data, error) {
	if adjust {
		var err error
		tree, err = AdjustTree(tree, positions, 0)
		if err != nil {
			return nil, err
		}
	}
	m, err := motion.FromVectors(tree, positions, nil, frameTime)
	if err != nil {
		return nil, err
	}
	return Retarget(m)
}
