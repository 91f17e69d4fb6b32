package bvh

import (
	"errors"
	"math"
	"strings"
	"testing"

	"bvhConverter/src/rotation"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const legBVH = `
HIERARCHY
ROOT Hips
{
    OFFSET 0.0 0.0 0.0
    CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
    JOINT LeftUpLeg
    {
        OFFSET 1.0 0.0 0.0
        CHANNELS 3 Zrotation Xrotation Yrotation
        JOINT LeftLeg
        {
            OFFSET 0.0 1.0 0.0
            CHANNELS 3 Zrotation Xrotation Yrotation
            End Site
            {
                OFFSET 0.0 0.0 1.0
            }
        }
    }
}
MOTION
Frames: 2
Frame Time: 0.033333
0.0 0.1 0.2 0.0 0.0 0.0 90.0 0.0 90.0 180.0 90.0 0
0.1 0.2 0.3 0.0 180.0 0.0 45.0 0.0 45.0 90.0 45.0 0

`

func assertRotations(t *testing.T, name string, got []quat.Number, order rotation.Order, want ...[3]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: %d frames, want %d", name, len(got), len(want))
	}
	for i, angles := range want {
		if w := rotation.FromEuler(order, angles); !rotation.NearlyEqual(got[i], w, 1e-9) {
			t.Errorf("%s frame %d: rotation %v, want %v", name, i, got[i], w)
		}
	}
}

func TestParseLegClip(t *testing.T) {
	clip, err := Parse(legBVH)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := clip.Motion
	if m.FrameTime() != 0.033333 {
		t.Errorf("FrameTime = %v", m.FrameTime())
	}
	if m.FrameCount() != 2 {
		t.Errorf("FrameCount = %d", m.FrameCount())
	}

	tree := clip.Tree()
	wantNodes := []struct {
		name, parent string
		offset       r3.Vec
	}{
		{"Hips", "", r3.Vec{}},
		{"LeftUpLeg", "Hips", r3.Vec{X: 1}},
		{"LeftLeg", "LeftUpLeg", r3.Vec{Y: 1}},
		{"LeftLeg_EndSite", "LeftLeg", r3.Vec{Z: 1}},
	}
	for _, w := range wantNodes {
		n, err := tree.Node(w.name)
		if err != nil {
			t.Fatalf("Node(%s): %v", w.name, err)
		}
		if n.Parent() != w.parent || n.Offset() != w.offset {
			t.Errorf("%s = parent %q offset %v, want %q %v", w.name, n.Parent(), n.Offset(), w.parent, w.offset)
		}
	}

	hips := m.Positions("Hips")
	if hips[0] != (r3.Vec{X: 0, Y: 0.1, Z: 0.2}) || hips[1] != (r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}) {
		t.Errorf("Hips positions = %v", hips)
	}
	if m.HasPositions("LeftLeg") {
		t.Errorf("LeftLeg has no position channels")
	}

	assertRotations(t, "Hips", m.Rotations("Hips"), rotation.ZXY, [3]float64{0, 0, 0}, [3]float64{0, 180, 0})
	assertRotations(t, "LeftUpLeg", m.Rotations("LeftUpLeg"), rotation.ZXY, [3]float64{90, 0, 90}, [3]float64{45, 0, 45})
	assertRotations(t, "LeftLeg", m.Rotations("LeftLeg"), rotation.ZXY, [3]float64{180, 90, 0}, [3]float64{90, 45, 0})

	if got := strings.Join(clip.Order, ","); got != "Hips,LeftUpLeg,LeftLeg" {
		t.Errorf("Order = %s", got)
	}
	if l := clip.Layouts["Hips"]; l.ChannelCount() != 6 || !l.HasPositions() {
		t.Errorf("Hips layout = %v", l)
	}
}

func TestParseThreeNodeChain(t *testing.T) {
	const src = `HIERARCHY
ROOT Root
{
  OFFSET 0 0 0
  CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
  JOINT A
  {
    OFFSET 1 0 0
    CHANNELS 3 Zrotation Xrotation Yrotation
    JOINT B
    {
      OFFSET 0 1 0
      CHANNELS 3 Zrotation Xrotation Yrotation
    }
  }
}
MOTION
Frames: 2
Frame Time: 0.1
0 0 0 0 0 0 0 0 0 0 0 0
0 0 0 90 0 0 0 0 0 0 0 0
`
	clip, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := clip.Motion
	root := m.Rotations("Root")
	if !rotation.NearlyEqual(root[0], rotation.Identity, 1e-9) {
		t.Errorf("frame 1 root = %v, want identity", root[0])
	}
	want := rotation.AboutAxis(rotation.AxisZ, math.Pi/2)
	if !rotation.NearlyEqual(root[1], want, 1e-9) {
		t.Errorf("frame 2 root = %v, want 90 deg about Z", root[1])
	}
	for _, name := range []string{"A", "B"} {
		for i, q := range m.Rotations(name) {
			if !rotation.NearlyEqual(q, rotation.Identity, 1e-9) {
				t.Errorf("%s frame %d = %v, want identity", name, i, q)
			}
		}
	}
}

func TestParseDeclaredChannelOrder(t *testing.T) {
	// Rotations declared before positions still decode by declared order.
	const src = `HIERARCHY
ROOT R
{
  OFFSET 0 0 0
  CHANNELS 6 Yrotation Xrotation Zrotation Zposition Xposition Yposition
  End Site
  {
    OFFSET 0 1 0
  }
}
MOTION
Frames: 1
Frame Time: 0.5
10 20 30 1 2 3
`
	clip, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p, _ := clip.Motion.PositionAt("R", 0); p != (r3.Vec{X: 2, Y: 3, Z: 1}) {
		t.Errorf("position = %v", p)
	}
	q, _ := clip.Motion.RotationAt("R", 0)
	if !rotation.NearlyEqual(q, rotation.FromEuler(rotation.YXZ, [3]float64{10, 20, 30}), 1e-9) {
		t.Errorf("rotation = %v", q)
	}
	if o, _ := clip.Layouts["R"].RotationOrder(); o != rotation.YXZ {
		t.Errorf("order = %s", o)
	}
}

func TestParseErrors(t *testing.T) {
	const motionTail = "MOTION\nFrames: 1\nFrame Time: 0.1\n0 0 0\n"
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{
			name:     "channel count mismatch",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition\n}\n" + motionTail,
			wantLine: 5,
		},
		{
			name:     "invalid channel name",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition Wposition\n}\n" + motionTail,
			wantLine: 5,
		},
		{
			name:     "second root",
			src:      "HIERARCHY\nROOT R\n{\n}\nROOT S\n{\n}\n" + motionTail,
			wantLine: 5,
		},
		{
			name:     "joint before root",
			src:      "HIERARCHY\nJOINT J\n{\n}\n" + motionTail,
			wantLine: 2,
		},
		{
			name:     "offset before root",
			src:      "HIERARCHY\nOFFSET 0 0 0\n" + motionTail,
			wantLine: 2,
		},
		{
			name:     "close without open",
			src:      "HIERARCHY\n}\n" + motionTail,
			wantLine: 2,
		},
		{
			name:     "end without site",
			src:      "HIERARCHY\nROOT R\n{\nEnd Effector\n{\n}\n}\n" + motionTail,
			wantLine: 4,
		},
		{
			name:     "motion without joints",
			src:      "HIERARCHY\n" + motionTail,
			wantLine: 2,
		},
		{
			name:     "short offset",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0\n}\n" + motionTail,
			wantLine: 4,
		},
		{
			name:     "row width",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition Zposition\n}\nMOTION\nFrames: 1\nFrame Time: 0.1\n0 0\n",
			wantLine: 10,
		},
		{
			name:     "non numeric",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition Zposition\n}\nMOTION\nFrames: 1\nFrame Time: 0.1\n0 x 0\n",
			wantLine: 10,
		},
		{
			name:     "too many rows",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition Zposition\n}\nMOTION\nFrames: 1\nFrame Time: 0.1\n0 0 0\n1 1 1\n",
			wantLine: 11,
		},
		{
			name: "too few rows",
			src:  "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition Zposition\n}\nMOTION\nFrames: 3\nFrame Time: 0.1\n0 0 0\n",
		},
		{
			name:     "bad frames header",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 3 Xposition Yposition Zposition\n}\nMOTION\nFrame: 1\nFrame Time: 0.1\n0 0 0\n",
			wantLine: 8,
		},
		{
			name:     "unclosed joint",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\n" + motionTail,
			wantLine: 5,
		},
		{
			name: "missing motion",
			src:  "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\n}\n",
		},
		{
			name:     "partial rotation channels",
			src:      "HIERARCHY\nROOT R\n{\nOFFSET 0 0 0\nCHANNELS 2 Xrotation Yrotation\n}\n" + motionTail,
			wantLine: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse error = %v, want *ParseError", err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("line = %d, want %d (%v)", pe.Line, tt.wantLine, err)
			}
		})
	}
}

func TestParseDuplicateJointName(t *testing.T) {
	src := "HIERARCHY\nROOT R\n{\nJOINT A\n{\n}\nJOINT A\n{\n}\n}\nMOTION\nFrames: 0\nFrame Time: 0.1\n"
	_, err := Parse(src)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 7 {
		t.Fatalf("error = %v, want duplicate at line 7", err)
	}
}

func TestLoadReturnsTree(t *testing.T) {
	tree, m, err := Load(legBVH)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tree != m.Tree() {
		t.Errorf("Load tree differs from motion tree")
	}
	if !tree.Has("LeftLeg_EndSite") {
		t.Errorf("End Site node missing")
	}
}
