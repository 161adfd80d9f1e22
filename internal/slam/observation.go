package slam

import "math"

// LandmarkObservation is one raw line-feature report:
// range, bearing-to-line, and line orientation, relative to the robot.
type LandmarkObservation struct {
	Radius float64
	Angle  float64 // φ_rel: robot-frame line bearing
	X, Y   float64 // a point on the line, robot frame
}

// canonicalMeasurement is the converted world-frame measurement used
// throughout association, augmentation, and correction.
type canonicalMeasurement struct {
	worldAngle float64 // φ_world
	anchorX    float64
	anchorY    float64
	mx, my     float64 // canonical foot-of-perpendicular point
	r          float64
	bearing    float64
}

// canonicalize converts a raw observation into the canonical world-frame
// measurement, given the current pose (x, y, theta).
func canonicalize(x, y, theta float64, obs LandmarkObservation) canonicalMeasurement {
	worldAngle := obs.Angle + theta

	ax := x + math.Cos(theta)*obs.X - math.Sin(theta)*obs.Y
	ay := y + math.Cos(theta)*obs.Y + math.Sin(theta)*obs.X

	// Foot of the perpendicular from the origin onto the infinite line
	// through (ax, ay) with direction worldAngle: project -A onto the
	// line's unit direction and step from A by that signed distance.
	// Avoids a slope-based construction, which is undefined for
	// vertical lines.
	cw, sw := math.Cos(worldAngle), math.Sin(worldAngle)
	t := -(ax*cw + ay*sw)
	mx := ax + t*cw
	my := ay + t*sw

	r := math.Hypot(mx-x, my-y)
	bearing := math.Atan2(my-y, mx-x) - theta

	return canonicalMeasurement{
		worldAngle: worldAngle,
		anchorX:    ax,
		anchorY:    ay,
		mx:         mx,
		my:         my,
		r:          r,
		bearing:    bearing,
	}
}

// measurementNoise returns R's diagonal entries (range, bearing) for a
// measurement at range r. In no_bearing mode only the range entry is
// meaningful; callers must use it alone.
func (e *Engine) measurementNoise(r float64) (vr, vb float64) {
	return e.cfg.RangeVr * r, e.cfg.BearingVb * r
}
