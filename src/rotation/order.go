package rotation

import "fmt"

// Axis is one of the three coordinate axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns the axis letter.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Order is the sequence in which three Euler angles are composed.
type Order int

const (
	XYZ Order = iota
	XZY
	YXZ
	YZX
	ZXY
	ZYX
)

var orderAxes = [...][3]Axis{
	XYZ: {AxisX, AxisY, AxisZ},
	XZY: {AxisX, AxisZ, AxisY},
	YXZ: {AxisY, AxisX, AxisZ},
	YZX: {AxisY, AxisZ, AxisX},
	ZXY: {AxisZ, AxisX, AxisY},
	ZYX: {AxisZ, AxisY, AxisX},
}

// Orders lists every rotation order.
var Orders = []Order{XYZ, XZY, YXZ, YZX, ZXY, ZYX}

// Valid reports whether o is one of the six orders.
func (o Order) Valid() bool {
	return o >= XYZ && o <= ZYX
}

// Axes returns the axes of o in composition order.
func (o Order) Axes() [3]Axis {
	return orderAxes[o]
}

// String returns the order as three axis letters, e.g. "ZXY".
func (o Order) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Order(%d)", int(o))
	}
	axes := orderAxes[o]
	return axes[0].String() + axes[1].String() + axes[2].String()
}

// ParseOrder converts "XYZ".."ZYX" into an Order.
func ParseOrder(s string) (Order, error) {
	for _, o := range Orders {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("invalid rotation order %q", s)
}

// OrderFromAxes returns the order whose axis sequence is axes.
func OrderFromAxes(axes [3]Axis) (Order, bool) {
	for _, o := range Orders {
		if orderAxes[o] == axes {
			return o, true
		}
	}
	return 0, false
}

// cyclic reports whether the axis sequence is an even permutation of XYZ.
func (o Order) cyclic() bool {
	return o == XYZ || o == YZX || o == ZXY
}
