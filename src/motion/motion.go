// Package motion holds per-joint position and rotation streams bound to a
// kinematic tree.
package motion

import (
	"errors"
	"fmt"
	"sort"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultFrameTime is 30 frames per second.
const DefaultFrameTime = 1.0 / 30

var (
	// ErrShape means a position row is not 3 wide or a rotation row not 4 wide.
	ErrShape = errors.New("invalid motion array shape")
	// ErrFrameCount means two streams disagree on the number of frames.
	ErrFrameCount = errors.New("inconsistent frame count")
	// ErrUnknownNode means a stream is keyed by a name missing from the tree.
	ErrUnknownNode = errors.New("unknown node")
)

// Data is an immutable set of motion streams. Positions are world (or
// root-relative) joint positions; rotations are local joint rotations as unit
// quaternions. Every stream has FrameCount entries.
type Data struct {
	tree       *kinematics.Tree
	positions  map[string][]r3.Vec
	rotations  map[string][]quat.Number
	frameTime  float64
	frameCount int
}

// New builds motion data from raw rows: positions are frames x 3,
// rotations frames x 4 scalar-last (x, y, z, w) quaternions. Inputs are copied.
func New(tree *kinematics.Tree, positions, rotations map[string][][]float64, frameTime float64) (*Data, error) {
	pos := make(map[string][]r3.Vec, len(positions))
	for _, name := range sortedKeys(positions) {
		rows := positions[name]
		vecs := make([]r3.Vec, len(rows))
		for i, row := range rows {
			if len(row) != 3 {
				return nil, fmt.Errorf("%w: position data for %q must have 3 columns, frame %d has %d", ErrShape, name, i, len(row))
			}
			vecs[i] = r3.Vec{X: row[0], Y: row[1], Z: row[2]}
		}
		pos[name] = vecs
	}

	rot := make(map[string][]quat.Number, len(rotations))
	for _, name := range sortedKeys(rotations) {
		rows := rotations[name]
		qs := make([]quat.Number, len(rows))
		for i, row := range rows {
			if len(row) != 4 {
				return nil, fmt.Errorf("%w: rotation data for %q must have 4 columns, frame %d has %d", ErrShape, name, i, len(row))
			}
			qs[i] = rotation.FromXYZW(row)
		}
		rot[name] = qs
	}
	return build(tree, pos, rot, frameTime)
}

// FromVectors builds motion data from typed streams. Inputs are copied.
func FromVectors(tree *kinematics.Tree, positions map[string][]r3.Vec, rotations map[string][]quat.Number, frameTime float64) (*Data, error) {
	return build(tree, copyPositions(positions), copyRotations(rotations), frameTime)
}

// build takes ownership of pos and rot.
func build(tree *kinematics.Tree, pos map[string][]r3.Vec, rot map[string][]quat.Number, frameTime float64) (*Data, error) {
	if tree == nil {
		return nil, errors.New("motion data requires a kinematic tree")
	}
	for _, name := range sortedKeys(pos) {
		if !tree.Has(name) {
			return nil, fmt.Errorf("%w: position data for %q", ErrUnknownNode, name)
		}
	}
	for _, name := range sortedKeys(rot) {
		if !tree.Has(name) {
			return nil, fmt.Errorf("%w: rotation data for %q", ErrUnknownNode, name)
		}
	}
	frameCount, err := inferFrameCount(pos, rot)
	if err != nil {
		return nil, err
	}
	return &Data{
		tree:       tree,
		positions:  pos,
		rotations:  rot,
		frameTime:  frameTime,
		frameCount: frameCount,
	}, nil
}

// inferFrameCount takes the count from the first stream, positions before
// rotations and names in sorted order, and checks every other stream.
func inferFrameCount(pos map[string][]r3.Vec, rot map[string][]quat.Number) (int, error) {
	count, found := 0, false
	check := func(kind, name string, n int) error {
		if !found {
			count, found = n, true
			return nil
		}
		if n != count {
			return fmt.Errorf("%w: %s data for %q has %d frames, expected %d", ErrFrameCount, kind, name, n, count)
		}
		return nil
	}
	for _, name := range sortedKeys(pos) {
		if err := check("position", name, len(pos[name])); err != nil {
			return 0, err
		}
	}
	for _, name := range sortedKeys(rot) {
		if err := check("rotation", name, len(rot[name])); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Tree returns the kinematic tree the streams belong to.
func (d *Data) Tree() *kinematics.Tree { return d.tree }

// FrameCount returns the shared number of frames.
func (d *Data) FrameCount() int { return d.frameCount }

// FrameTime returns seconds per frame.
func (d *Data) FrameTime() float64 { return d.frameTime }

// HasPositions reports whether a position stream exists for the node.
func (d *Data) HasPositions(name string) bool {
	_, ok := d.positions[name]
	return ok
}

// HasRotations reports whether a rotation stream exists for the node.
func (d *Data) HasRotations(name string) bool {
	_, ok := d.rotations[name]
	return ok
}

// Positions returns a copy of the node's position stream, or nil.
func (d *Data) Positions(name string) []r3.Vec {
	p, ok := d.positions[name]
	if !ok {
		return nil
	}
	return append([]r3.Vec(nil), p...)
}

// Rotations returns a copy of the node's rotation stream, or nil.
func (d *Data) Rotations(name string) []quat.Number {
	r, ok := d.rotations[name]
	if !ok {
		return nil
	}
	return append([]quat.Number(nil), r...)
}

// PositionAt returns one frame of a position stream without copying the stream.
func (d *Data) PositionAt(name string, frame int) (r3.Vec, bool) {
	p, ok := d.positions[name]
	if !ok || frame < 0 || frame >= len(p) {
		return r3.Vec{}, false
	}
	return p[frame], true
}

// RotationAt returns one frame of a rotation stream without copying the stream.
func (d *Data) RotationAt(name string, frame int) (quat.Number, bool) {
	r, ok := d.rotations[name]
	if !ok || frame < 0 || frame >= len(r) {
		return quat.Number{}, false
	}
	return r[frame], true
}

// PositionRows returns the node's positions as frames x 3 rows.
func (d *Data) PositionRows(name string) [][]float64 {
	p, ok := d.positions[name]
	if !ok {
		return nil
	}
	rows := make([][]float64, len(p))
	for i, v := range p {
		rows[i] = []float64{v.X, v.Y, v.Z}
	}
	return rows
}

// RotationRows returns the node's rotations as frames x 4 (x, y, z, w) rows.
func (d *Data) RotationRows(name string) [][]float64 {
	r, ok := d.rotations[name]
	if !ok {
		return nil
	}
	rows := make([][]float64, len(r))
	for i, q := range r {
		xyzw := rotation.ToXYZW(q)
		rows[i] = xyzw[:]
	}
	return rows
}

// PositionNames returns the nodes with position streams in tree order.
func (d *Data) PositionNames() []string {
	var out []string
	for _, name := range d.tree.Names() {
		if d.HasPositions(name) {
			out = append(out, name)
		}
	}
	return out
}

// RotationNames returns the nodes with rotation streams in tree order.
func (d *Data) RotationNames() []string {
	var out []string
	for _, name := range d.tree.Names() {
		if d.HasRotations(name) {
			out = append(out, name)
		}
	}
	return out
}

// WithPositions returns new motion data with the position streams replaced.
// A nil map keeps the current streams; an empty map removes them all.
func (d *Data) WithPositions(positions map[string][]r3.Vec) (*Data, error) {
	if positions == nil {
		return d, nil
	}
	return build(d.tree, copyPositions(positions), d.rotations, d.frameTime)
}

// WithRotations returns new motion data with the rotation streams replaced.
// A nil map keeps the current streams; an empty map removes them all.
func (d *Data) WithRotations(rotations map[string][]quat.Number) (*Data, error) {
	if rotations == nil {
		return d, nil
	}
	return build(d.tree, d.positions, copyRotations(rotations), d.frameTime)
}

// WithFrameTime returns new motion data with another frame time.
func (d *Data) WithFrameTime(frameTime float64) *Data {
	out := *d
	out.frameTime = frameTime
	return &out
}

// WithTree rebinds the streams to another tree, e.g. one with adjusted
// offsets. Every stream must name a node of the new tree.
func (d *Data) WithTree(tree *kinematics.Tree) (*Data, error) {
	return build(tree, d.positions, d.rotations, d.frameTime)
}

// Slice returns frames [from, to) of every stream.
func (d *Data) Slice(from, to int) (*Data, error) {
	if from < 0 || to > d.frameCount || from > to {
		return nil, fmt.Errorf("%w: slice [%d, %d) of %d frames", ErrFrameCount, from, to, d.frameCount)
	}
	pos := make(map[string][]r3.Vec, len(d.positions))
	for name, p := range d.positions {
		pos[name] = append([]r3.Vec(nil), p[from:to]...)
	}
	rot := make(map[string][]quat.Number, len(d.rotations))
	for name, r := range d.rotations {
		rot[name] = append([]quat.Number(nil), r[from:to]...)
	}
	return build(d.tree, pos, rot, d.frameTime)
}

func copyPositions(in map[string][]r3.Vec) map[string][]r3.Vec {
	out := make(map[string][]r3.Vec, len(in))
	for name, p := range in {
		out[name] = append([]r3.Vec(nil), p...)
	}
	return out
}

func copyRotations(in map[string][]quat.Number) map[string][]quat.Number {
	out := make(map[string][]quat.Number, len(in))
	for name, r := range in {
		out[name] = append([]quat.Number(nil), r...)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
