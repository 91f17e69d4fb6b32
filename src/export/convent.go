// Package export writes motion reports: CSV tables of joint rotations, world
// positions and the joint hierarchy, and PNG charts of them.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bvhConverter/src/bvh"
	"bvhConverter/src/convert"
	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/spatial/r3"
)

// Options selects what Bvh2Csv writes.
type Options struct {
	Scale     float64
	Rotations bool
	Positions bool
	Hierarchy bool
	// EndSites adds End Site nodes to the position and hierarchy tables.
	EndSites bool
	// Progress receives per-stage timing when set.
	Progress io.Writer
}

// DefaultOptions writes every table at scale 1 without End Sites.
func DefaultOptions() Options {
	return Options{Scale: 1, Rotations: true, Positions: true, Hierarchy: true}
}

// WriteJointRotations writes the Euler angles of every joint with rotation
// data, one row per frame. Each joint is written in the rotation order of its
// layout, or bvh.DefaultRotationOrder when it has none.
func WriteJointRotations(m *motion.Data, layouts map[string]bvh.ChannelLayout, w io.Writer) error {
	names := m.RotationNames()
	orders := make([]rotation.Order, len(names))
	header := []string{"time"}
	for i, name := range names {
		orders[i] = bvh.DefaultRotationOrder
		if l, ok := layouts[name]; ok {
			if o, ok := l.RotationOrder(); ok {
				orders[i] = o
			}
		}
		for _, axis := range orders[i].Axes() {
			header = append(header, fmt.Sprintf("%s.%s", name, strings.ToLower(axis.String())))
		}
	}

	writer := bufio.NewWriter(w)
	fmt.Fprintf(writer, "%s\n", strings.Join(header, ","))
	for f := 0; f < m.FrameCount(); f++ {
		fmt.Fprintf(writer, "%10.5f", float64(f)*m.FrameTime())
		for i, name := range names {
			q, _ := m.RotationAt(name, f)
			for _, v := range rotation.ToEuler(q, orders[i]) {
				fmt.Fprintf(writer, ",%10.5f", v)
			}
		}
		fmt.Fprintf(writer, "\n")
	}
	return writer.Flush()
}

// WriteJointPositions writes the position streams of the joints in order,
// multiplied by scale, one row per frame.
func WriteJointPositions(positions map[string][]r3.Vec, order []string, frameTime, scale float64, w io.Writer) error {
	frames := -1
	header := []string{"time"}
	for _, name := range order {
		stream, ok := positions[name]
		if !ok {
			return fmt.Errorf("export: no positions for %q", name)
		}
		if frames >= 0 && len(stream) != frames {
			return fmt.Errorf("export: %q has %d frames, want %d", name, len(stream), frames)
		}
		frames = len(stream)
		for _, axis := range []string{"x", "y", "z"} {
			header = append(header, fmt.Sprintf("%s.%s", name, axis))
		}
	}

	writer := bufio.NewWriter(w)
	fmt.Fprintf(writer, "%s\n", strings.Join(header, ","))
	for f := 0; f < frames; f++ {
		fmt.Fprintf(writer, "%10.5f", float64(f)*frameTime)
		for _, name := range order {
			p := r3.Scale(scale, positions[name][f])
			fmt.Fprintf(writer, ",%10.5f,%10.5f,%10.5f", p.X, p.Y, p.Z)
		}
		fmt.Fprintf(writer, "\n")
	}
	return writer.Flush()
}

// WriteJointHierarchy writes one row per joint with its parent and scaled
// rest offset. The root has an empty parent.
func WriteJointHierarchy(tree *kinematics.Tree, scale float64, w io.Writer) error {
	writer := bufio.NewWriter(w)
	fmt.Fprintf(writer, "joint,parent,offset.x,offset.y,offset.z\n")
	for _, node := range tree.Nodes() {
		offset := r3.Scale(scale, node.Offset())
		fmt.Fprintf(writer, "%s,%s,%f,%f,%f\n", node.Name(), node.Parent(), offset.X, offset.Y, offset.Z)
	}
	return writer.Flush()
}

// Bvh2Csv loads a BVH file and writes the tables selected by opts into
// dstDir as <name>_rot.csv, <name>_pos.csv and <name>_hierarchy.csv. It
// returns the paths written.
func Bvh2Csv(bvhPath, dstDir string, opts Options) ([]string, error) {
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	startTime := time.Now()

	clip, err := bvh.LoadFile(bvhPath)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(progress, "file read: %s\n", time.Since(startTime))

	stem := strings.TrimSuffix(filepath.Base(bvhPath), filepath.Ext(bvhPath))
	var written []string
	write := func(suffix string, fn func(io.Writer) error) error {
		path := filepath.Join(dstDir, stem+suffix)
		if err := writeFile(path, fn); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	tree := clip.Tree()
	if !opts.EndSites {
		tree, err = withoutEndSites(tree, clip.Layouts)
		if err != nil {
			return nil, err
		}
	}

	if opts.Positions {
		startTime = time.Now()
		positions, err := convert.ForwardKinematics(clip.Motion, nil)
		if err != nil {
			return nil, err
		}
		var order []string
		for _, name := range tree.Names() {
			if _, ok := positions[name]; ok {
				order = append(order, name)
			}
		}
		frameTime := clip.Motion.FrameTime()
		if err := write("_pos.csv", func(w io.Writer) error {
			return WriteJointPositions(positions, order, frameTime, opts.Scale, w)
		}); err != nil {
			return nil, err
		}
		fmt.Fprintf(progress, "positions: %s\n", time.Since(startTime))
	}

	if opts.Rotations {
		startTime = time.Now()
		if err := write("_rot.csv", func(w io.Writer) error {
			return WriteJointRotations(clip.Motion, clip.Layouts, w)
		}); err != nil {
			return nil, err
		}
		fmt.Fprintf(progress, "rotations: %s\n", time.Since(startTime))
	}

	if opts.Hierarchy {
		startTime = time.Now()
		if err := write("_hierarchy.csv", func(w io.Writer) error {
			return WriteJointHierarchy(tree, opts.Scale, w)
		}); err != nil {
			return nil, err
		}
		fmt.Fprintf(progress, "hierarchy: %s\n", time.Since(startTime))
	}

	return written, nil
}

// withoutEndSites drops the joints that declare no channels. In a parsed
// clip those are exactly the End Site leaves.
func withoutEndSites(tree *kinematics.Tree, layouts map[string]bvh.ChannelLayout) (*kinematics.Tree, error) {
	for _, name := range tree.Names() {
		if _, ok := layouts[name]; ok || !tree.IsLeaf(name) {
			continue
		}
		if _, ok := tree.Parent(name); !ok {
			continue
		}
		var err error
		if tree, err = tree.RemoveNode(name); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: could not write to file %s: %w", path, err)
	}
	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
