// Package bvh reads and writes Biovision Hierarchy motion files.
package bvh

import (
	"fmt"
	"strings"

	"bvhConverter/src/rotation"
)

// Channel is one degree of freedom of a joint in a motion row.
type Channel int

const (
	Xposition Channel = iota
	Yposition
	Zposition
	Xrotation
	Yrotation
	Zrotation
)

var channelNames = [...]string{
	Xposition: "Xposition",
	Yposition: "Yposition",
	Zposition: "Zposition",
	Xrotation: "Xrotation",
	Yrotation: "Yrotation",
	Zrotation: "Zrotation",
}

// String returns the BVH token of the channel.
func (c Channel) String() string {
	if c < Xposition || c > Zrotation {
		return fmt.Sprintf("Channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel validates a BVH channel token.
func ParseChannel(token string) (Channel, error) {
	for c, name := range channelNames {
		if name == token {
			return Channel(c), nil
		}
	}
	return 0, fmt.Errorf("invalid channel %q", token)
}

// IsPosition reports whether c is a translation channel.
func (c Channel) IsPosition() bool { return c <= Zposition }

// IsRotation reports whether c is a rotation channel.
func (c Channel) IsRotation() bool { return c >= Xrotation && c <= Zrotation }

// Axis returns the coordinate axis the channel acts on.
func (c Channel) Axis() rotation.Axis {
	if c.IsPosition() {
		return rotation.Axis(c - Xposition)
	}
	return rotation.Axis(c - Xrotation)
}

func rotationChannel(a rotation.Axis) Channel { return Xrotation + Channel(a) }

// ChannelLayout is the ordered channel set of one joint. Rotation channels
// are either absent or a permutation of all three axes, which maps one to
// one onto a rotation.Order.
type ChannelLayout struct {
	positions   []Channel
	order       rotation.Order
	hasRotation bool
	// declared keeps the order the channels appear in a CHANNELS line, which
	// is the order of the values in each motion row.
	declared []Channel
}

// NewChannelLayout builds a layout from channels in declared order.
func NewChannelLayout(channels []Channel) (ChannelLayout, error) {
	var l ChannelLayout
	seen := make(map[Channel]bool, len(channels))
	var rotAxes []rotation.Axis
	for _, c := range channels {
		if c < Xposition || c > Zrotation {
			return ChannelLayout{}, fmt.Errorf("invalid channel %v", c)
		}
		if seen[c] {
			return ChannelLayout{}, fmt.Errorf("duplicate channel %s", c)
		}
		seen[c] = true
		if c.IsPosition() {
			l.positions = append(l.positions, c)
		} else {
			rotAxes = append(rotAxes, c.Axis())
		}
	}
	switch len(rotAxes) {
	case 0:
	case 3:
		order, ok := rotation.OrderFromAxes([3]rotation.Axis{rotAxes[0], rotAxes[1], rotAxes[2]})
		if !ok {
			return ChannelLayout{}, fmt.Errorf("invalid rotation channels %v", rotAxes)
		}
		l.order, l.hasRotation = order, true
	default:
		return ChannelLayout{}, fmt.Errorf("rotation channels must name all three axes, got %d", len(rotAxes))
	}
	l.declared = append([]Channel(nil), channels...)
	return l, nil
}

// LayoutFromOrder returns the canonical layout for a rotation order, with
// X/Y/Z position channels first when withPositions is set.
func LayoutFromOrder(order rotation.Order, withPositions bool) ChannelLayout {
	var channels []Channel
	if withPositions {
		channels = append(channels, Xposition, Yposition, Zposition)
	}
	for _, a := range order.Axes() {
		channels = append(channels, rotationChannel(a))
	}
	l, err := NewChannelLayout(channels)
	if err != nil {
		panic(err)
	}
	return l
}

// PositionLayout returns a layout carrying only the given position channels.
func PositionLayout(channels ...Channel) (ChannelLayout, error) {
	for _, c := range channels {
		if !c.IsPosition() {
			return ChannelLayout{}, fmt.Errorf("%s is not a position channel", c)
		}
	}
	return NewChannelLayout(channels)
}

// PositionChannels returns the translation channels in declared order.
func (l ChannelLayout) PositionChannels() []Channel {
	return append([]Channel(nil), l.positions...)
}

// RotationChannels returns the rotation channels in rotation order.
func (l ChannelLayout) RotationChannels() []Channel {
	if !l.hasRotation {
		return nil
	}
	axes := l.order.Axes()
	return []Channel{rotationChannel(axes[0]), rotationChannel(axes[1]), rotationChannel(axes[2])}
}

// Channels returns position channels followed by rotation channels, the
// order used when writing.
func (l ChannelLayout) Channels() []Channel {
	return append(l.PositionChannels(), l.RotationChannels()...)
}

// Declared returns the channels in the order they were declared.
func (l ChannelLayout) Declared() []Channel {
	return append([]Channel(nil), l.declared...)
}

// ChannelCount returns the number of values the joint contributes per frame.
func (l ChannelLayout) ChannelCount() int {
	n := len(l.positions)
	if l.hasRotation {
		n += 3
	}
	return n
}

// HasPositions reports whether the layout carries translation channels.
func (l ChannelLayout) HasPositions() bool { return len(l.positions) > 0 }

// HasRotations reports whether the layout carries rotation channels.
func (l ChannelLayout) HasRotations() bool { return l.hasRotation }

// RotationOrder returns the Euler order of the rotation channels.
func (l ChannelLayout) RotationOrder() (rotation.Order, bool) {
	return l.order, l.hasRotation
}

func (l ChannelLayout) String() string {
	names := make([]string, 0, l.ChannelCount())
	for _, c := range l.Channels() {
		names = append(names, c.String())
	}
	return fmt.Sprintf("%d %s", len(names), strings.Join(names, " "))
}
