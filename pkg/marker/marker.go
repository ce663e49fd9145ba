// Package marker defines the data types shared with the vision
// collaborator. Detecting or rendering markers is outside this module;
// holoLink only consumes the integer ID and pose that detection yields.
package marker

// ID identifies a rendered or detected marker. Any integer is valid.
type ID int

// Vec3 is a position in the host's spatial frame.
type Vec3 struct {
	X, Y, Z float32
}

// Quat is an orientation in the host's spatial frame.
type Quat struct {
	X, Y, Z, W float32
}

// Detection is a single marker sighting reported by the vision layer.
type Detection struct {
	ID       ID
	Position Vec3
	Rotation Quat
}

// Source is the vision collaborator contract: a stream of detections.
// The channel closes when the source shuts down.
type Source interface {
	Detections() <-chan Detection
}
