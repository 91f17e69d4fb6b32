package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bvhConverter/src/bvh"
	"bvhConverter/src/convert"
	"bvhConverter/src/export"
	"bvhConverter/src/kinematics"
	"bvhConverter/src/rotation"
)

const usage = `usage: bvhConverter <command> [flags]

commands:
  info      print the joints, channels and frame count of a BVH file
  csv       export rotations, world positions and hierarchy of a BVH file as CSV
  plot      plot two columns of a CSV table, or the trajectory of one joint
  retarget  rebuild the rotations of a BVH file from its world positions
  pos2bvh   build a BVH file from hierarchy and position tables
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run dispatches a subcommand.
func run(args []string, out io.Writer, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(errOut, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "info":
		return runInfo(rest, out, errOut)
	case "csv":
		return runCsv(rest, out, errOut)
	case "plot":
		return runPlot(rest, out, errOut)
	case "retarget":
		return runRetarget(rest, out, errOut)
	case "pos2bvh":
		return runPos2Bvh(rest, out, errOut)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(out, usage)
		return nil
	}
	fmt.Fprint(errOut, usage)
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func logf(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "[bvhConverter] "+format+"\n", args...)
}

func newFlagSet(name string, errOut io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("bvhConverter "+name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	return fs
}

// inputArg returns the -in flag value, or the first positional argument.
func inputArg(fs *flag.FlagSet, in string, ext string) (string, error) {
	if in == "" && fs.NArg() > 0 {
		in = fs.Arg(0)
	}
	if in == "" {
		return "", fmt.Errorf("%w: specify an input file (-in)", errUsage)
	}
	if ext != "" && !strings.EqualFold(filepath.Ext(in), ext) {
		return "", fmt.Errorf("%w: input extension is not %s: %s", errUsage, ext, in)
	}
	return in, nil
}

func runInfo(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("info", errOut)
	in := fs.String("in", "", "input BVH file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := inputArg(fs, *in, ".bvh")
	if err != nil {
		return err
	}

	clip, err := bvh.LoadFile(path)
	if err != nil {
		return err
	}
	tree := clip.Tree()
	m := clip.Motion
	fmt.Fprintf(out, "file: %s\n", path)
	fmt.Fprintf(out, "frames: %d\n", m.FrameCount())
	fmt.Fprintf(out, "frame time: %f\n", m.FrameTime())
	fmt.Fprintf(out, "joints: %d\n", tree.Len())
	for _, node := range tree.Nodes() {
		depth, err := tree.Depth(node.Name())
		if err != nil {
			return err
		}
		channels := "-"
		if l, ok := clip.Layouts[node.Name()]; ok {
			channels = l.String()
		}
		fmt.Fprintf(out, "%s%s [%s]\n", strings.Repeat("  ", depth), node.Name(), channels)
	}
	return nil
}

func runCsv(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("csv", errOut)
	in := fs.String("in", "", "input BVH file")
	dst := fs.String("out", "", "output directory (default: next to the input)")
	scale := fs.Float64("scale", 1, "scale applied to positions and offsets")
	rot := fs.Bool("rot", true, "write joint rotations")
	pos := fs.Bool("pos", true, "write joint world positions")
	hierarchy := fs.Bool("hierarchy", true, "write the joint hierarchy")
	endSites := fs.Bool("endsites", false, "include End Sites in positions and hierarchy")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := inputArg(fs, *in, ".bvh")
	if err != nil {
		return err
	}
	if *dst == "" {
		*dst = filepath.Dir(path)
	}
	if err := os.MkdirAll(*dst, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	opts := export.Options{
		Scale:     *scale,
		Rotations: *rot,
		Positions: *pos,
		Hierarchy: *hierarchy,
		EndSites:  *endSites,
		Progress:  prefixWriter{out},
	}
	written, err := export.Bvh2Csv(path, *dst, opts)
	if err != nil {
		return err
	}
	for _, p := range written {
		logf(out, "written: %s", p)
	}
	return nil
}

func runPlot(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("plot", errOut)
	in := fs.String("in", "", "input CSV table")
	x := fs.Int("x", 0, "column plotted on the x axis")
	y := fs.Int("y", 1, "column plotted on the y axis")
	bvhPath := fs.String("bvh", "", "BVH file whose joint trajectory is plotted instead of a table")
	joint := fs.String("joint", "", "joint to plot with -bvh (default: root)")
	dst := fs.String("out", "plot.png", "output PNG file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	startTime := time.Now()
	if *bvhPath == "" {
		path, err := inputArg(fs, *in, ".csv")
		if err != nil {
			return err
		}
		if err := export.PlotCsv(path, *x, *y, *dst); err != nil {
			return err
		}
		logf(out, "plot: %s", time.Since(startTime))
		logf(out, "written: %s", *dst)
		return nil
	}

	clip, err := bvh.LoadFile(*bvhPath)
	if err != nil {
		return err
	}
	logf(out, "file read: %s", time.Since(startTime))
	name := *joint
	if name == "" {
		root, _ := clip.Tree().Root()
		name = root.Name()
	}
	positions, err := convert.ForwardKinematics(clip.Motion, nil)
	if err != nil {
		return err
	}
	if err := export.PlotJointTrajectory(positions, name, clip.Motion.FrameTime(), *dst); err != nil {
		return err
	}
	logf(out, "plot: %s", time.Since(startTime))
	logf(out, "written: %s", *dst)
	return nil
}

func runRetarget(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("retarget", errOut)
	in := fs.String("in", "", "input BVH file")
	dst := fs.String("out", "", "output BVH file (default: <input>_retarget.bvh)")
	order := fs.String("order", "", "rotation order written for every joint (default: ZXY)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := inputArg(fs, *in, ".bvh")
	if err != nil {
		return err
	}
	outputPath, err := resolveOutputPath(path, *dst, "_retarget")
	if err != nil {
		return err
	}

	startTime := time.Now()
	clip, err := bvh.LoadFile(path)
	if err != nil {
		return err
	}
	logf(out, "file read: %s", time.Since(startTime))

	startTime = time.Now()
	positions, err := convert.ForwardKinematics(clip.Motion, nil)
	if err != nil {
		return err
	}
	withPositions, err := clip.Motion.WithPositions(positions)
	if err != nil {
		return err
	}
	logf(out, "positions: %s", time.Since(startTime))

	startTime = time.Now()
	retargeted, err := convert.Retarget(withPositions)
	if err != nil {
		return err
	}
	logf(out, "rotations: %s", time.Since(startTime))

	return save(out, outputPath, retargeted.Tree(), *order, func(layouts map[string]bvh.ChannelLayout) error {
		return bvh.SaveFile(outputPath, retargeted, layouts)
	})
}

func runPos2Bvh(args []string, out, errOut io.Writer) error {
	fs := newFlagSet("pos2bvh", errOut)
	hierarchyPath := fs.String("hierarchy", "", "joint hierarchy CSV table")
	positionsPath := fs.String("positions", "", "joint position CSV table")
	dst := fs.String("out", "", "output BVH file (default: next to the position table)")
	adjust := fs.Bool("adjust", false, "refit rest offsets from the positions")
	order := fs.String("order", "", "rotation order written for every joint (default: ZXY)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hierarchyPath == "" || *positionsPath == "" {
		return fmt.Errorf("%w: specify -hierarchy and -positions", errUsage)
	}
	outputPath, err := resolveOutputPath(*positionsPath, *dst, "")
	if err != nil {
		return err
	}

	startTime := time.Now()
	tree, err := export.ReadHierarchyFile(*hierarchyPath)
	if err != nil {
		return err
	}
	positions, frameTime, err := export.ReadPositionsFile(*positionsPath)
	if err != nil {
		return err
	}
	logf(out, "file read: %s", time.Since(startTime))

	startTime = time.Now()
	m, err := convert.FromPositions(tree, positions, frameTime, *adjust)
	if err != nil {
		return err
	}
	logf(out, "rotations: %s", time.Since(startTime))

	return save(out, outputPath, m.Tree(), *order, func(layouts map[string]bvh.ChannelLayout) error {
		return bvh.SaveFile(outputPath, m, layouts)
	})
}

// save builds per-joint layouts for order, when given, and writes the file.
func save(out io.Writer, outputPath string, tree *kinematics.Tree, order string, write func(map[string]bvh.ChannelLayout) error) error {
	var layouts map[string]bvh.ChannelLayout
	if order != "" {
		o, err := rotation.ParseOrder(order)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		layouts = make(map[string]bvh.ChannelLayout, tree.Len())
		for _, node := range tree.Nodes() {
			layouts[node.Name()] = bvh.LayoutFromOrder(o, node.IsRoot())
		}
	}
	if err := ensureOutputDir(outputPath); err != nil {
		return err
	}

	startTime := time.Now()
	if err := write(layouts); err != nil {
		return err
	}
	logf(out, "save: %s", time.Since(startTime))
	logf(out, "written: %s", outputPath)
	return nil
}

// resolveOutputPath defaults to <input dir>/<input name><suffix>.bvh.
func resolveOutputPath(inputPath, outputPath, suffix string) (string, error) {
	if strings.TrimSpace(outputPath) == "" {
		dir := filepath.Dir(inputPath)
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		return filepath.Join(dir, base+suffix+".bvh"), nil
	}
	if !strings.EqualFold(filepath.Ext(outputPath), ".bvh") {
		return "", fmt.Errorf("%w: output extension is not .bvh: %s", errUsage, outputPath)
	}
	return outputPath, nil
}

func ensureOutputDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	return nil
}

// prefixWriter tags library progress lines with the command prefix.
type prefixWriter struct {
	w io.Writer
}

func (p prefixWriter) Write(b []byte) (int, error) {
	if _, err := fmt.Fprintf(p.w, "[bvhConverter] %s", b); err != nil {
		return 0, err
	}
	return len(b), nil
}
