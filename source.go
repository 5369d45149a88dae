package rasterview

// ProgressFunc is called by long running operations such as statistics
// gathering. percent runs from 0 to 100. A nil ProgressFunc is always
// acceptable.
type ProgressFunc func(message string, percent int)

// Block is a single band window of raster samples in row-major order.
// Samples are held as float64 regardless of the band type so that no-data
// and NaN handling is uniform. Integer samples up to 53 bits are exact.
type Block struct {
	Data   []float64
	Width  int
	Height int
	// Float is true when the band holds floating point samples, which may
	// therefore contain NaN.
	Float bool
}

// NewBlock allocates a zeroed block of the given dimensions.
func NewBlock(width, height int, float bool) *Block {
	return &Block{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
		Float:  float,
	}
}

// At returns the sample at (x, y). No bounds checking beyond the slice's own.
func (b *Block) At(x, y int) float64 {
	return b.Data[y*b.Width+x]
}

// Set stores a sample at (x, y).
func (b *Block) Set(x, y int, v float64) {
	b.Data[y*b.Width+x] = v
}

// RasterSource is the access a raster layer needs to its file format driver.
// Bands are numbered from 1. Overviews are numbered from 1 with 0 meaning
// the full resolution raster; ReadBlock coordinates are in the pixel space
// of the requested overview.
type RasterSource interface {
	// RasterSize returns the full resolution dimensions.
	RasterSize() (xsize, ysize int)
	// BandCount returns the number of bands.
	BandCount() int
	// GeoTransform returns the pixel to world transform.
	GeoTransform() (Geotransform, error)
	// OverviewCount returns the number of reduced resolution overviews
	// available for a band.
	OverviewCount(band int) int
	// OverviewSize returns the dimensions of overview index (1 based).
	OverviewSize(band, index int) (xsize, ysize int, err error)
	// ReadBlock reads a w by h window at (x, y) from the given overview of a
	// band, decimating or replicating to outWidth by outHeight on the way
	// through when they differ from w and h.
	ReadBlock(band, overview, x, y, w, h, outWidth, outHeight int) (*Block, error)
	// NoDataValue returns the band's no-data value, if one is set.
	NoDataValue(band int) (float64, bool)
	// Statistics returns band statistics ignoring no-data and NaN samples.
	Statistics(band int, progress ProgressFunc) (Statistics, error)
	// Histogram counts samples of a band into nBins equal width bins
	// spanning [min, max].
	Histogram(band int, min, max float64, nBins int, progress ProgressFunc) ([]int, error)
	// ColorTable returns the color table attached to a band, or nil.
	ColorTable(band int) []RGBA
}
