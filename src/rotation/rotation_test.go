package rotation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecClose(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) < tol
}

func TestParseOrderRoundTrip(t *testing.T) {
	for _, o := range Orders {
		got, err := ParseOrder(o.String())
		if err != nil {
			t.Fatalf("ParseOrder(%s): %v", o, err)
		}
		if got != o {
			t.Errorf("ParseOrder(%s) = %s", o, got)
		}
		back, ok := OrderFromAxes(o.Axes())
		if !ok || back != o {
			t.Errorf("OrderFromAxes(%v) = %s, %v", o.Axes(), back, ok)
		}
	}
	if _, err := ParseOrder("XXY"); err == nil {
		t.Fatalf("expected error for XXY")
	}
}

func TestFromEulerSingleAxis(t *testing.T) {
	q := FromEuler(ZXY, [3]float64{90, 0, 0})
	want := quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2}
	if !NearlyEqual(q, want, 1e-12) {
		t.Fatalf("90 deg about Z = %v, want %v", q, want)
	}
	v := Rotate(q, r3.Vec{X: 1})
	if !vecClose(v, r3.Vec{Y: 1}, 1e-12) {
		t.Errorf("rotated x axis = %v, want +Y", v)
	}
}

func TestFromEulerIsIntrinsic(t *testing.T) {
	// Intrinsic ZXY equals Rz * Rx * Ry.
	angles := [3]float64{30, 45, 60}
	want := quat.Mul(quat.Mul(AboutAxis(AxisZ, 30*math.Pi/180), AboutAxis(AxisX, 45*math.Pi/180)), AboutAxis(AxisY, 60*math.Pi/180))
	got := FromEuler(ZXY, angles)
	if !NearlyEqual(got, want, 1e-12) {
		t.Fatalf("FromEuler(ZXY) = %v, want %v", got, want)
	}
}

func TestEulerRoundTripAllOrders(t *testing.T) {
	samples := [][3]float64{
		{0, 0, 0},
		{10, 20, 30},
		{-170, 80, 5},
		{45, -45, 135},
		{179, 1, -179},
	}
	for _, o := range Orders {
		for _, s := range samples {
			q := FromEuler(o, s)
			back := FromEuler(o, ToEuler(q, o))
			if !NearlyEqual(q, back, 1e-9) {
				t.Errorf("%s %v: round trip %v -> %v", o, s, q, back)
			}
		}
	}
}

func TestToEulerRecoversAngles(t *testing.T) {
	for _, o := range Orders {
		angles := [3]float64{12.5, -33, 71}
		got := ToEuler(FromEuler(o, angles), o)
		for i := range angles {
			if math.Abs(got[i]-angles[i]) > 1e-9 {
				t.Errorf("%s: angle %d = %v, want %v", o, i, got[i], angles[i])
			}
		}
	}
}

func TestToEulerGimbalLock(t *testing.T) {
	for _, o := range Orders {
		q := FromEuler(o, [3]float64{20, 90, 0})
		back := FromEuler(o, ToEuler(q, o))
		if !NearlyEqual(q, back, 1e-6) {
			t.Errorf("%s gimbal: %v -> %v", o, q, back)
		}
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	q := FromEuler(YXZ, [3]float64{170, -20, 95})
	if got := FromMatrix(Matrix(q)); !NearlyEqual(got, q, 1e-12) {
		t.Fatalf("FromMatrix(Matrix(q)) = %v, want %v", got, q)
	}
}

func TestShortestArc(t *testing.T) {
	tests := []struct {
		name     string
		from, to r3.Vec
	}{
		{"perpendicular", r3.Vec{X: 1}, r3.Vec{Y: 2}},
		{"same", r3.Vec{Z: 1}, r3.Vec{Z: 3}},
		{"opposite", r3.Vec{X: 1}, r3.Vec{X: -1}},
		{"oblique", r3.Vec{X: 1, Y: 1}, r3.Vec{Y: -1, Z: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := ShortestArc(tt.from, tt.to)
			got := Rotate(q, r3.Unit(tt.from))
			if !vecClose(got, r3.Unit(tt.to), 1e-12) {
				t.Errorf("rotated %v = %v, want %v", tt.from, got, r3.Unit(tt.to))
			}
		})
	}
	if q := ShortestArc(r3.Vec{}, r3.Vec{X: 1}); q != Identity {
		t.Errorf("zero vector should give identity, got %v", q)
	}
}

func TestAlignRecoversRigidRotation(t *testing.T) {
	want := FromEuler(XYZ, [3]float64{25, -40, 110})
	from := []r3.Vec{{X: 1}, {Y: 1}, {X: 1, Y: 1, Z: 1}, {Z: -2}}
	to := make([]r3.Vec, len(from))
	for i, v := range from {
		to[i] = Rotate(want, v)
	}
	got := Align(from, to)
	if !NearlyEqual(got, want, 1e-9) {
		t.Fatalf("Align = %v, want %v", got, want)
	}
}

func TestAlignTwoVectors(t *testing.T) {
	want := FromEuler(ZYX, [3]float64{-60, 15, 5})
	from := []r3.Vec{r3.Unit(r3.Vec{X: 1, Y: 0.2}), r3.Unit(r3.Vec{X: -1, Y: 0.2})}
	to := []r3.Vec{Rotate(want, from[0]), Rotate(want, from[1])}
	if got := Align(from, to); !NearlyEqual(got, want, 1e-9) {
		t.Fatalf("Align = %v, want %v", got, want)
	}
}

func TestAlignCollinearFallsBackToShortestArc(t *testing.T) {
	from := []r3.Vec{{X: 1}, {X: 2}}
	to := []r3.Vec{{Y: 1}, {Y: 2}}
	got := Align(from, to)
	if !NearlyEqual(got, ShortestArc(from[0], to[0]), 1e-12) {
		t.Fatalf("collinear Align = %v", got)
	}
}
