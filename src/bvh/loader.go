package bvh

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"
	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// EndSiteSuffix is appended to the parent name to name an End Site node.
const EndSiteSuffix = "_EndSite"

// ParseError reports malformed BVH input. Line is 1-based; zero means the
// error is not tied to a single line.
type ParseError struct {
	Line    int
	Content string
	Msg     string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("bvh: line %d: %s: %q", e.Line, e.Msg, e.Content)
	}
	return "bvh: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Clip is the result of parsing a BVH file.
type Clip struct {
	Motion *motion.Data
	// Layouts holds the declared channels of every joint with a CHANNELS line.
	Layouts map[string]ChannelLayout
	// Order lists the joints of Layouts in declaration order, which is the
	// column order of the motion rows.
	Order []string
}

// Tree returns the kinematic tree of the clip.
func (c *Clip) Tree() *kinematics.Tree { return c.Motion.Tree() }

type line struct {
	num    int
	text   string
	tokens []string
}

func (l line) errorf(format string, args ...any) *ParseError {
	return &ParseError{Line: l.num, Content: l.text, Msg: fmt.Sprintf(format, args...)}
}

// hierarchy accumulates the HIERARCHY section of one Parse call.
type hierarchy struct {
	nodes    []kinematics.Node
	index    map[string]int
	stack    []string
	layouts  map[string]ChannelLayout
	order    []string
	rootSeen bool
}

// LoadFile reads and parses a BVH file.
func LoadFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bvh: could not read %s: %w", path, err)
	}
	return Parse(string(data))
}

// Load parses BVH text and returns its tree and motion.
func Load(content string) (*kinematics.Tree, *motion.Data, error) {
	clip, err := Parse(content)
	if err != nil {
		return nil, nil, err
	}
	return clip.Tree(), clip.Motion, nil
}

// Parse parses BVH text. Every error it returns is a *ParseError.
func Parse(content string) (*Clip, error) {
	lines := splitLines(content)

	h := &hierarchy{
		index:   make(map[string]int),
		layouts: make(map[string]ChannelLayout),
	}
	motionAt := -1
	for i, l := range lines {
		if l.tokens[0] == "MOTION" {
			if len(h.nodes) == 0 {
				return nil, l.errorf("MOTION reached before any joint was defined")
			}
			if len(h.stack) > 0 {
				return nil, l.errorf("MOTION reached with %d unclosed joint(s)", len(h.stack))
			}
			motionAt = i
			break
		}
		if err := h.feed(l); err != nil {
			return nil, err
		}
	}
	if motionAt < 0 {
		return nil, &ParseError{Msg: "MOTION section not found"}
	}

	tree, err := kinematics.FromNodes(h.nodes)
	if err != nil {
		return nil, &ParseError{Msg: "invalid hierarchy: " + err.Error(), Err: err}
	}

	data, err := h.parseMotion(tree, lines[motionAt], lines[motionAt+1:])
	if err != nil {
		return nil, err
	}
	return &Clip{Motion: data, Layouts: h.layouts, Order: h.order}, nil
}

func splitLines(content string) []line {
	var out []line
	for i, text := range strings.Split(content, "\n") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, line{num: i + 1, text: text, tokens: strings.Fields(text)})
	}
	return out
}

func (h *hierarchy) current() (string, bool) {
	if len(h.stack) == 0 {
		return "", false
	}
	return h.stack[len(h.stack)-1], true
}

func (h *hierarchy) feed(l line) error {
	keyword := l.tokens[0]
	switch keyword {
	case "HIERARCHY":
		if len(h.nodes) > 0 {
			return l.errorf("HIERARCHY inside the joint hierarchy")
		}
		return nil

	case "ROOT":
		if h.rootSeen {
			return l.errorf("multiple ROOT nodes are not allowed")
		}
		if len(l.tokens) < 2 {
			return l.errorf("ROOT without a name")
		}
		h.rootSeen = true
		return h.open(l, strings.Join(l.tokens[1:], " "), "")

	case "JOINT":
		parent, ok := h.current()
		if !ok {
			return l.errorf("JOINT outside of ROOT")
		}
		if len(l.tokens) < 2 {
			return l.errorf("JOINT without a name")
		}
		return h.open(l, strings.Join(l.tokens[1:], " "), parent)

	case "End":
		parent, ok := h.current()
		if !ok {
			return l.errorf("End Site outside of a joint")
		}
		if len(l.tokens) != 2 || l.tokens[1] != "Site" {
			return l.errorf("expected \"End Site\"")
		}
		return h.open(l, parent+EndSiteSuffix, parent)

	case "{":
		if _, ok := h.current(); !ok {
			return l.errorf("'{' without a joint")
		}
		return nil

	case "}":
		if len(h.stack) == 0 {
			return l.errorf("'}' without a matching joint")
		}
		h.stack = h.stack[:len(h.stack)-1]
		return nil

	case "OFFSET":
		name, ok := h.current()
		if !ok {
			return l.errorf("OFFSET before a joint is defined")
		}
		if len(l.tokens) != 4 {
			return l.errorf("OFFSET needs 3 values, got %d", len(l.tokens)-1)
		}
		var v [3]float64
		for i, tok := range l.tokens[1:] {
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return l.errorf("invalid OFFSET value %q", tok)
			}
			v[i] = f
		}
		i := h.index[name]
		h.nodes[i] = h.nodes[i].WithOffset(r3.Vec{X: v[0], Y: v[1], Z: v[2]})
		return nil

	case "CHANNELS":
		name, ok := h.current()
		if !ok {
			return l.errorf("CHANNELS before a joint is defined")
		}
		if _, dup := h.layouts[name]; dup {
			return l.errorf("second CHANNELS line for joint %q", name)
		}
		layout, err := parseChannels(l)
		if err != nil {
			return err
		}
		h.layouts[name] = layout
		h.order = append(h.order, name)
		return nil
	}
	return l.errorf("unexpected keyword %q", keyword)
}

func (h *hierarchy) open(l line, name, parent string) error {
	if _, dup := h.index[name]; dup {
		return l.errorf("duplicate joint name %q", name)
	}
	n, err := kinematics.NewNode(name, parent, r3.Vec{})
	if err != nil {
		pe := l.errorf("%v", err)
		pe.Err = err
		return pe
	}
	h.index[name] = len(h.nodes)
	h.nodes = append(h.nodes, n)
	h.stack = append(h.stack, name)
	return nil
}

func parseChannels(l line) (ChannelLayout, error) {
	if len(l.tokens) < 2 {
		return ChannelLayout{}, l.errorf("CHANNELS without a count")
	}
	count, err := strconv.Atoi(l.tokens[1])
	if err != nil || count < 0 {
		return ChannelLayout{}, l.errorf("invalid channel count %q", l.tokens[1])
	}
	names := l.tokens[2:]
	if len(names) != count {
		return ChannelLayout{}, l.errorf("channel count mismatch: declared %d, got %d", count, len(names))
	}
	channels := make([]Channel, len(names))
	for i, name := range names {
		c, err := ParseChannel(name)
		if err != nil {
			return ChannelLayout{}, l.errorf("%v", err)
		}
		channels[i] = c
	}
	layout, err := NewChannelLayout(channels)
	if err != nil {
		return ChannelLayout{}, l.errorf("%v", err)
	}
	return layout, nil
}

func (h *hierarchy) parseMotion(tree *kinematics.Tree, header line, rest []line) (*motion.Data, error) {
	if len(rest) < 2 {
		return nil, header.errorf("motion section needs Frames and Frame Time lines")
	}

	framesLine := rest[0]
	if len(framesLine.tokens) != 2 || framesLine.tokens[0] != "Frames:" {
		return nil, framesLine.errorf("expected \"Frames: <count>\"")
	}
	frameCount, err := strconv.Atoi(framesLine.tokens[1])
	if err != nil || frameCount < 0 {
		return nil, framesLine.errorf("invalid frame count %q", framesLine.tokens[1])
	}

	timeLine := rest[1]
	if len(timeLine.tokens) != 3 || timeLine.tokens[0] != "Frame" || timeLine.tokens[1] != "Time:" {
		return nil, timeLine.errorf("expected \"Frame Time: <seconds>\"")
	}
	frameTime, err := strconv.ParseFloat(timeLine.tokens[2], 64)
	if err != nil {
		return nil, timeLine.errorf("invalid frame time %q", timeLine.tokens[2])
	}

	rows := rest[2:]
	if len(rows) != frameCount {
		if len(rows) > frameCount {
			return nil, rows[frameCount].errorf("frame count mismatch: declared %d frames, got %d", frameCount, len(rows))
		}
		return nil, &ParseError{Msg: fmt.Sprintf("frame count mismatch: declared %d frames, got %d", frameCount, len(rows))}
	}

	width := 0
	for _, name := range h.order {
		width += h.layouts[name].ChannelCount()
	}

	positions := make(map[string][]r3.Vec)
	rotations := make(map[string][]quat.Number)
	for _, name := range h.order {
		layout := h.layouts[name]
		if layout.HasPositions() {
			positions[name] = make([]r3.Vec, frameCount)
		}
		if layout.HasRotations() {
			rotations[name] = make([]quat.Number, frameCount)
		}
	}

	values := make([]float64, width)
	for frame, row := range rows {
		if len(row.tokens) != width {
			return nil, row.errorf("expected %d values, got %d", width, len(row.tokens))
		}
		for i, tok := range row.tokens {
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, row.errorf("invalid motion value %q", tok)
			}
			values[i] = f
		}

		offset := 0
		for _, name := range h.order {
			layout := h.layouts[name]
			n := layout.ChannelCount()
			pos, rot := decodeChannels(layout, values[offset:offset+n])
			if layout.HasPositions() {
				positions[name][frame] = pos
			}
			if layout.HasRotations() {
				rotations[name][frame] = rot
			}
			offset += n
		}
	}

	data, err := motion.FromVectors(tree, positions, rotations, frameTime)
	if err != nil {
		return nil, &ParseError{Msg: err.Error(), Err: err}
	}
	return data, nil
}

// decodeChannels splits one joint's share of a motion row into a position
// and a rotation. Rotation angles are composed in the order their channels
// were declared.
func decodeChannels(layout ChannelLayout, values []float64) (r3.Vec, quat.Number) {
	var pos r3.Vec
	var angles [3]float64
	k := 0
	for i, c := range layout.declared {
		v := values[i]
		switch c {
		case Xposition:
			pos.X = v
		case Yposition:
			pos.Y = v
		case Zposition:
			pos.Z = v
		default:
			angles[k] = v
			k++
		}
	}
	order, ok := layout.RotationOrder()
	if !ok {
		return pos, rotation.Identity
	}
	return pos, rotation.FromEuler(order, angles)
}
