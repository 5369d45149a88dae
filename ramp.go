package rasterview

// Color ramps for the pseudocolor display mode. Each ramp is a set of
// control points at positions 0..1, interpolated linearly when sampled into
// a LUT. The multi hue ramps come from colorbrewer2.org.

type rampPoint struct {
	pos     float64
	r, g, b uint8
}

var colorRamps = map[string][]rampPoint{
	"gray": {
		{0.0, 0, 0, 0},
		{1.0, 255, 255, 255},
	},
	"rainbow": {
		{0.0, 0, 0, 255},
		{0.25, 0, 255, 255},
		{0.5, 0, 255, 0},
		{0.75, 255, 255, 0},
		{1.0, 255, 0, 0},
	},
	"viridis": {
		{0.0, 68, 1, 84},
		{0.25, 59, 82, 139},
		{0.5, 33, 145, 140},
		{0.75, 94, 201, 98},
		{1.0, 253, 231, 37},
	},
	"Blues": {
		{0.0, 247, 251, 255},
		{0.5, 107, 174, 214},
		{1.0, 8, 48, 107},
	},
	"RdYlGn": {
		{0.0, 215, 48, 39},
		{0.25, 252, 141, 89},
		{0.5, 255, 255, 191},
		{0.75, 145, 207, 96},
		{1.0, 26, 152, 80},
	},
	"YlOrRd": {
		{0.0, 255, 255, 178},
		{0.5, 253, 141, 60},
		{1.0, 189, 0, 38},
	},
}

// RampNames returns the names accepted by Stretch.SetPseudoColor.
func RampNames() []string {
	names := make([]string, 0, len(colorRamps))
	for name := range colorRamps {
		names = append(names, name)
	}
	return names
}

func rampPointChannel(p rampPoint, channel int) uint8 {
	switch channel {
	case 0:
		return p.r
	case 1:
		return p.g
	}
	return p.b
}

// rampChannel samples one channel (0=red, 1=green, 2=blue) of the named ramp
// into lutsize entries.
func rampChannel(channel int, name string, lutsize int) ([]uint8, error) {
	points, ok := colorRamps[name]
	if !ok {
		return nil, &InvalidParametersError{Reason: "unknown color ramp " + name}
	}
	out := make([]uint8, lutsize)
	for i := range out {
		pos := 0.0
		if lutsize > 1 {
			pos = float64(i) / float64(lutsize-1)
		}
		// find the surrounding control points
		lo := points[0]
		hi := points[len(points)-1]
		for j := 0; j < len(points)-1; j++ {
			if pos >= points[j].pos && pos <= points[j+1].pos {
				lo = points[j]
				hi = points[j+1]
				break
			}
		}
		lov := float64(rampPointChannel(lo, channel))
		hiv := float64(rampPointChannel(hi, channel))
		if hi.pos == lo.pos {
			out[i] = uint8(lov)
			continue
		}
		frac := (pos - lo.pos) / (hi.pos - lo.pos)
		out[i] = uint8(lov + frac*(hiv-lov) + 0.5)
	}
	return out, nil
}
