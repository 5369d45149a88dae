package rasterview

// RenderOptions configures a LayerManager and the layers it creates.
type RenderOptions struct {
	// Workers is the number of goroutines rendering layers in parallel.
	// 1 renders serially.
	Workers int
	// AllowUngeoreferenced flips the pixel resolution of rasters that are
	// not north up instead of rejecting them, so unmapped data can still
	// be displayed.
	AllowUngeoreferenced bool
}

// DefaultRenderOptions returns the defaults: serial rendering and only
// north-up rasters accepted.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Workers: 1}
}

func (o RenderOptions) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}
