package bvh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultRotationOrder is used for joints without an explicit layout.
const DefaultRotationOrder = rotation.ZXY

const indent = "  "

var (
	// ErrMissingData means a joint declares channels the motion has no stream for.
	ErrMissingData = errors.New("declared channels have no motion data")
	// ErrNoMotion means no joint contributes any motion column.
	ErrNoMotion = errors.New("no motion data found to save")
	// ErrNoRoot means the tree to save is empty.
	ErrNoRoot = errors.New("kinematic tree does not have a root node")
)

// SaveFile writes m as a BVH file. layouts overrides the channel layout of
// individual joints; see Format.
func SaveFile(path string, m *motion.Data, layouts map[string]ChannelLayout) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bvh: could not create %s: %w", path, err)
	}
	if err := Write(f, m, layouts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Format renders m as BVH text.
//
// Joints without an entry in layouts get three rotation channels in
// DefaultRotationOrder, preceded by X/Y/Z position channels on the root.
// A leaf joint that has siblings is written as a JOINT with an empty End
// Site; a leaf without siblings becomes a bare End Site and has no channels.
func Format(m *motion.Data, layouts map[string]ChannelLayout) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, m, layouts); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write renders m as BVH text into w.
func Write(w io.Writer, m *motion.Data, layouts map[string]ChannelLayout) error {
	tree := m.Tree()
	hierarchy, order, err := buildHierarchy(tree, layouts)
	if err != nil {
		return err
	}
	columns, err := motionColumns(m, order, layouts)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(hierarchy)
	fmt.Fprintf(bw, "MOTION\nFrames: %d\nFrame Time: %.6f\n", m.FrameCount(), m.FrameTime())

	row := make([]byte, 0, 256)
	for frame := 0; frame < m.FrameCount(); frame++ {
		row = row[:0]
		for i, col := range columns {
			if i > 0 {
				row = append(row, ' ')
			}
			row = strconv.AppendFloat(row, col[frame], 'g', -1, 64)
		}
		row = append(row, '\n')
		if _, err := bw.Write(row); err != nil {
			return fmt.Errorf("bvh: write motion: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("bvh: write motion: %w", err)
	}
	return nil
}

func layoutFor(node kinematics.Node, layouts map[string]ChannelLayout) ChannelLayout {
	if l, ok := layouts[node.Name()]; ok {
		return l
	}
	return LayoutFromOrder(DefaultRotationOrder, node.IsRoot())
}

// buildHierarchy returns the HIERARCHY block and the joints that own motion
// columns, in the order their channels were written.
func buildHierarchy(tree *kinematics.Tree, layouts map[string]ChannelLayout) (string, []string, error) {
	root, ok := tree.Root()
	if !ok {
		return "", nil, ErrNoRoot
	}
	var order []string
	lines := []string{"HIERARCHY"}
	lines = append(lines, buildNode(tree, root, layouts, &order)...)
	return strings.Join(lines, "\n") + "\n", order, nil
}

func buildNode(tree *kinematics.Tree, node kinematics.Node, layouts map[string]ChannelLayout, order *[]string) []string {
	layout := layoutFor(node, layouts)
	children := tree.Children(node.Name())

	if len(children) > 0 {
		*order = append(*order, node.Name())
		var body []string
		for _, child := range children {
			body = append(body, buildNode(tree, child, layouts, order)...)
		}
		kind := "JOINT"
		if node.IsRoot() {
			kind = "ROOT"
		}
		return nodeBlock(kind+" "+node.Name(), node.Offset(), layout.Channels(), body)
	}

	if node.IsRoot() {
		*order = append(*order, node.Name())
		return nodeBlock("ROOT "+node.Name(), node.Offset(), layout.Channels(), nil)
	}

	if tree.HasSiblings(node.Name()) {
		*order = append(*order, node.Name())
		endSite := nodeBlock("End Site", r3.Vec{}, nil, nil)
		return nodeBlock("JOINT "+node.Name(), node.Offset(), layout.Channels(), endSite)
	}

	return nodeBlock("End Site", node.Offset(), nil, nil)
}

func nodeBlock(header string, offset r3.Vec, channels []Channel, body []string) []string {
	lines := []string{header, "{"}
	lines = append(lines, fmt.Sprintf("%sOFFSET %.6f %.6f %.6f", indent, offset.X, offset.Y, offset.Z))
	if len(channels) > 0 {
		names := make([]string, len(channels))
		for i, c := range channels {
			names[i] = c.String()
		}
		lines = append(lines, fmt.Sprintf("%sCHANNELS %d %s", indent, len(channels), strings.Join(names, " ")))
	}
	for _, l := range body {
		lines = append(lines, indent+l)
	}
	return append(lines, "}")
}

// motionColumns returns one slice per motion column, each FrameCount long.
func motionColumns(m *motion.Data, order []string, layouts map[string]ChannelLayout) ([][]float64, error) {
	tree := m.Tree()
	frames := m.FrameCount()
	var columns [][]float64

	for _, name := range order {
		node, err := tree.Node(name)
		if err != nil {
			return nil, err
		}
		layout := layoutFor(node, layouts)

		if layout.HasPositions() && !m.HasPositions(name) {
			return nil, fmt.Errorf("%w: position channels declared for %q", ErrMissingData, name)
		}
		if layout.HasRotations() && !m.HasRotations(name) {
			return nil, fmt.Errorf("%w: rotation channels declared for %q", ErrMissingData, name)
		}

		if layout.HasPositions() {
			cols := make([][]float64, len(layout.positions))
			for i := range cols {
				cols[i] = make([]float64, frames)
			}
			for f := 0; f < frames; f++ {
				p, _ := m.PositionAt(name, f)
				for i, c := range layout.positions {
					cols[i][f] = axisValue(p, c.Axis())
				}
			}
			columns = append(columns, cols...)
		}
		if rotOrder, ok := layout.RotationOrder(); ok {
			cols := [3][]float64{make([]float64, frames), make([]float64, frames), make([]float64, frames)}
			for f := 0; f < frames; f++ {
				q, _ := m.RotationAt(name, f)
				angles := rotation.ToEuler(q, rotOrder)
				for i := range angles {
					cols[i][f] = angles[i]
				}
			}
			columns = append(columns, cols[:]...)
		}
	}

	if len(columns) == 0 {
		return nil, ErrNoMotion
	}
	return columns, nil
}

func axisValue(v r3.Vec, a rotation.Axis) float64 {
	switch a {
	case rotation.AxisX:
		return v.X
	case rotation.AxisY:
		return v.Y
	}
	return v.Z
}
