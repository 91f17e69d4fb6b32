package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bvhConverter/src/bvh"
	"bvhConverter/src/convert"

	"gonum.org/v1/gonum/spatial/r3"
)

const walkBVH = `HIERARCHY
ROOT Hips
{
  OFFSET 0 0 0
  CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
  JOINT Spine
  {
    OFFSET 0 1 0
    CHANNELS 3 Zrotation Xrotation Yrotation
    End Site
    {
      OFFSET 0 1 0
    }
  }
  JOINT Leg
  {
    OFFSET 0.5 -0.2 0
    CHANNELS 3 Zrotation Xrotation Yrotation
    JOINT Foot
    {
      OFFSET 0 -1 0
      CHANNELS 3 Zrotation Xrotation Yrotation
      End Site
      {
        OFFSET 0 0 0.3
      }
    }
  }
}
MOTION
Frames: 3
Frame Time: 0.04
0 0 0 0 0 0 0 0 0 0 0 0 0 0 0
0.1 0 0.2 10 20 30 -15 5 0 20 -10 5 10 0 0
0.2 0.1 0.4 20 -10 45 -30 10 5 35 -20 0 20 5 -5
`

func writeInput(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "walk.bvh")
	if err := os.WriteFile(path, []byte(walkBVH), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir, path
}

func fk(t *testing.T, path string) map[string][]r3.Vec {
	t.Helper()
	clip, err := bvh.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(%s): %v", path, err)
	}
	positions, err := convert.ForwardKinematics(clip.Motion, nil)
	if err != nil {
		t.Fatalf("ForwardKinematics: %v", err)
	}
	return positions
}

func comparePositions(t *testing.T, got, want map[string][]r3.Vec, names []string, tol float64) {
	t.Helper()
	for _, name := range names {
		if len(got[name]) != len(want[name]) {
			t.Fatalf("%s: %d frames, want %d", name, len(got[name]), len(want[name]))
		}
		for f := range want[name] {
			if r3.Norm(r3.Sub(got[name][f], want[name][f])) > tol {
				t.Errorf("%s frame %d = %v, want %v", name, f, got[name][f], want[name][f])
			}
		}
	}
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(nil, &out, &errOut); !errors.Is(err, errUsage) {
		t.Fatalf("no command error = %v", err)
	}
	if !strings.Contains(errOut.String(), "usage:") {
		t.Errorf("usage not printed: %q", errOut.String())
	}
	if err := run([]string{"dance"}, &out, &errOut); !errors.Is(err, errUsage) {
		t.Fatalf("unknown command error = %v", err)
	}
	if err := run([]string{"info", "-in", "walk.txt"}, &out, &errOut); !errors.Is(err, errUsage) {
		t.Fatalf("wrong extension error = %v", err)
	}
}

func TestResolveOutputPath(t *testing.T) {
	got, err := resolveOutputPath(filepath.Join("work", "walk.bvh"), "", "_retarget")
	if err != nil {
		t.Fatalf("resolveOutputPath: %v", err)
	}
	if want := filepath.Join("work", "walk_retarget.bvh"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if _, err := resolveOutputPath("walk.bvh", "walk.csv", ""); err == nil {
		t.Errorf("non-BVH output should fail")
	}
}

func TestRunInfo(t *testing.T) {
	_, path := writeInput(t)
	var out, errOut bytes.Buffer
	if err := run([]string{"info", path}, &out, &errOut); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"frames: 3", "joints: 6", "  Leg [3 Zrotation Xrotation Yrotation]", "    Foot_EndSite [-]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunRetarget(t *testing.T) {
	dir, path := writeInput(t)
	var out, errOut bytes.Buffer
	if err := run([]string{"retarget", "-in", path, "-order", "XYZ"}, &out, &errOut); err != nil {
		t.Fatalf("retarget: %v", err)
	}
	outputPath := filepath.Join(dir, "walk_retarget.bvh")
	if !strings.Contains(out.String(), "[bvhConverter] written: "+outputPath) {
		t.Errorf("output = %q", out.String())
	}

	want := fk(t, path)
	got := fk(t, outputPath)
	comparePositions(t, got, want, []string{"Hips", "Spine", "Spine_EndSite", "Leg", "Foot", "Foot_EndSite"}, 1e-4)

	clip, err := bvh.LoadFile(outputPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if o, _ := clip.Layouts["Leg"].RotationOrder(); o.String() != "XYZ" {
		t.Errorf("Leg order = %s", o)
	}
}

func TestRunCsvThenPos2Bvh(t *testing.T) {
	dir, path := writeInput(t)
	var out, errOut bytes.Buffer
	if err := run([]string{"csv", "-in", path, "-endsites"}, &out, &errOut); err != nil {
		t.Fatalf("csv: %v", err)
	}
	for _, name := range []string{"walk_pos.csv", "walk_rot.csv", "walk_hierarchy.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if !strings.Contains(out.String(), "[bvhConverter] file read: ") {
		t.Errorf("progress not printed: %q", out.String())
	}

	outputPath := filepath.Join(dir, "rebuilt", "walk.bvh")
	out.Reset()
	err := run([]string{"pos2bvh",
		"-hierarchy", filepath.Join(dir, "walk_hierarchy.csv"),
		"-positions", filepath.Join(dir, "walk_pos.csv"),
		"-out", outputPath,
	}, &out, &errOut)
	if err != nil {
		t.Fatalf("pos2bvh: %v", err)
	}

	want := fk(t, path)
	got := fk(t, outputPath)
	comparePositions(t, got, want, []string{"Hips", "Spine", "Spine_EndSite", "Leg", "Foot", "Foot_EndSite"}, 1e-4)

	if err := run([]string{"pos2bvh", "-hierarchy", filepath.Join(dir, "walk_hierarchy.csv")}, &out, &errOut); !errors.Is(err, errUsage) {
		t.Errorf("missing positions error = %v", err)
	}
}

func TestRunPlot(t *testing.T) {
	dir, path := writeInput(t)
	var out, errOut bytes.Buffer
	if err := run([]string{"csv", "-in", path, "-rot=false", "-hierarchy=false"}, &out, &errOut); err != nil {
		t.Fatalf("csv: %v", err)
	}

	table := filepath.Join(dir, "walk_pos.csv")
	scatter := filepath.Join(dir, "scatter.png")
	if err := run([]string{"plot", "-in", table, "-x", "1", "-y", "3", "-out", scatter}, &out, &errOut); err != nil {
		t.Fatalf("plot csv: %v", err)
	}
	trajectory := filepath.Join(dir, "foot.png")
	if err := run([]string{"plot", "-bvh", path, "-joint", "Foot", "-out", trajectory}, &out, &errOut); err != nil {
		t.Fatalf("plot bvh: %v", err)
	}
	for _, p := range []string{scatter, trajectory} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not written: %v", p, err)
		}
	}
}
