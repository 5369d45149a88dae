package geotiff

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/valyala/fasthttp"

	rasterview "github.com/tuiview/rasterview"
)

// statsChunkRows is how many raster rows a statistics or histogram pass
// reads at a time.
const statsChunkRows = 512

// Source is a GeoTIFF file opened for display. It implements
// rasterview.RasterSource. Overviews are the reduced resolution IFDs of
// the file, as written by gdaladdo or a COG writer.
//
// A Source is safe for concurrent use; reads are serialized because the
// underlying reader is a single seek position.
type Source struct {
	mu     sync.Mutex
	r      io.ReadSeeker
	closer io.Closer
	fr     *fileReader
	levels []*metadata
	name   string
	stats  map[int]rasterview.Statistics
}

// Open opens a GeoTIFF from a local path or an http(s) URL.
func Open(pathOrURL string) (*Source, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return OpenURL(pathOrURL, nil)
	}
	f, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	src, err := newSource(f, filepath.Base(pathOrURL))
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// OpenURL opens a remote GeoTIFF over HTTP range requests. Works best
// with Cloud Optimized GeoTIFFs, where the header and overviews sit at
// the front of the file.
func OpenURL(url string, client *fasthttp.Client) (*Source, error) {
	name := url
	if i := strings.LastIndex(url, "/"); i >= 0 && i+1 < len(url) {
		name = url[i+1:]
	}
	return newSource(NewRangeReader(url, client), name)
}

// FromReader opens a GeoTIFF from any io.ReadSeeker.
func FromReader(r io.ReadSeeker, name string) (*Source, error) {
	return newSource(r, name)
}

func newSource(r io.ReadSeeker, name string) (*Source, error) {
	fr, err := newFileReader(r)
	if err != nil {
		return nil, &rasterview.FileFormatError{Reason: err.Error()}
	}

	src := &Source{
		r:     r,
		fr:    fr,
		name:  name,
		stats: make(map[int]rasterview.Statistics),
	}

	main, err := parseMetadata(fr, fr.directoryAt(0))
	if err != nil {
		return nil, &rasterview.FileFormatError{Reason: err.Error()}
	}
	src.levels = append(src.levels, main)

	// Remaining IFDs are overviews. One that does not parse, or that
	// changes shape, is skipped rather than failing the whole file.
	for i := 1; i < fr.directoryCount(); i++ {
		m, err := parseMetadata(fr, fr.directoryAt(i))
		if err != nil {
			continue
		}
		if m.bands != main.bands || m.sample != main.sample {
			continue
		}
		src.levels = append(src.levels, m)
	}

	return src, nil
}

// Close releases the underlying file when the source owns one.
func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Name returns the file name the source was opened from.
func (s *Source) Name() string {
	return s.name
}

// CRS returns the EPSG code of the raster, or "" when not recorded.
func (s *Source) CRS() string {
	return s.levels[0].crs()
}

// Bounds returns the georeferenced extent of the raster.
func (s *Source) Bounds() orb.Bound {
	m := s.levels[0]
	gt := m.geotransform()
	corners := [4]orb.Point{
		gt.PixelToWorld(0, 0),
		gt.PixelToWorld(float64(m.width), 0),
		gt.PixelToWorld(0, float64(m.height)),
		gt.PixelToWorld(float64(m.width), float64(m.height)),
	}
	b := orb.Bound{Min: corners[0], Max: corners[0]}
	for _, p := range corners[1:] {
		b = b.Extend(p)
	}
	return b
}

// RasterSize returns the full resolution dimensions.
func (s *Source) RasterSize() (int, int) {
	return s.levels[0].width, s.levels[0].height
}

// BandCount returns the number of bands.
func (s *Source) BandCount() int {
	return s.levels[0].bands
}

// GeoTransform returns the pixel to world transform.
func (s *Source) GeoTransform() (rasterview.Geotransform, error) {
	return s.levels[0].geotransform(), nil
}

// OverviewCount returns the number of overview levels. Bands of a TIFF
// share their overviews.
func (s *Source) OverviewCount(band int) int {
	return len(s.levels) - 1
}

// OverviewSize returns the dimensions of overview index, numbered from 1.
func (s *Source) OverviewSize(band, index int) (int, int, error) {
	if index < 1 || index >= len(s.levels) {
		return 0, 0, &rasterview.InvalidParametersError{
			Reason: fmt.Sprintf("overview index %d out of range", index),
		}
	}
	return s.levels[index].width, s.levels[index].height, nil
}

// NoDataValue returns the no-data value recorded in the file, if any.
func (s *Source) NoDataValue(band int) (float64, bool) {
	m := s.levels[0]
	return m.noData, m.hasNoData
}

// ColorTable returns the palette of a palette color image, or nil.
func (s *Source) ColorTable(band int) []rasterview.RGBA {
	if band != 1 {
		return nil
	}
	return s.levels[0].colorTable
}

func (s *Source) checkBand(band int) error {
	if band < 1 || band > s.levels[0].bands {
		return &rasterview.InvalidParametersError{
			Reason: fmt.Sprintf("band %d out of range", band),
		}
	}
	return nil
}

// ReadBlock reads a w by h window at (x, y) from the given overview,
// resampling by nearest neighbour to outWidth by outHeight when they
// differ.
func (s *Source) ReadBlock(band, overview, x, y, w, h, outWidth, outHeight int) (*rasterview.Block, error) {
	if err := s.checkBand(band); err != nil {
		return nil, err
	}
	if overview < 0 || overview >= len(s.levels) {
		return nil, &rasterview.InvalidParametersError{
			Reason: fmt.Sprintf("overview %d out of range", overview),
		}
	}
	m := s.levels[overview]
	if w <= 0 || h <= 0 || outWidth <= 0 || outHeight <= 0 {
		return nil, &rasterview.InvalidParametersError{Reason: "empty read window"}
	}
	if x < 0 || y < 0 || x+w > m.width || y+h > m.height {
		return nil, &rasterview.InvalidParametersError{
			Reason: fmt.Sprintf("window %d,%d %dx%d outside %dx%d raster",
				x, y, w, h, m.width, m.height),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	block := rasterview.NewBlock(outWidth, outHeight, m.sample.isFloat())
	bandOffset := (band - 1) * m.sample.byteSize()
	bytesPerPixel := m.bands * m.sample.byteSize()

	if outWidth == w && outHeight == h {
		raw, err := s.readRegion(overview, x, y, w, h)
		if err != nil {
			return nil, err
		}
		for row := 0; row < h; row++ {
			for col := 0; col < w; col++ {
				off := (row*w+col)*bytesPerPixel + bandOffset
				block.Set(col, row, decodeSample(raw, off, m.sample, s.fr.order))
			}
		}
		return block, nil
	}

	// Decimating read. Work slab by slab so strips and tile rows that
	// contribute no output row are never read at all.
	for r := 0; r < outHeight; {
		regionTop := y + r*h/outHeight
		slabH := m.rowsPerStrip
		if m.tiled {
			slabH = m.tileHeight
		}
		slabBottom := (regionTop/slabH + 1) * slabH
		if slabBottom > y+h {
			slabBottom = y + h
		}

		rEnd := r + 1
		for rEnd < outHeight && y+rEnd*h/outHeight < slabBottom {
			rEnd++
		}
		regionH := y + (rEnd-1)*h/outHeight - regionTop + 1

		raw, err := s.readRegion(overview, x, regionTop, w, regionH)
		if err != nil {
			return nil, err
		}
		for rr := r; rr < rEnd; rr++ {
			srcRow := y + rr*h/outHeight - regionTop
			for c := 0; c < outWidth; c++ {
				srcCol := c * w / outWidth
				off := (srcRow*w+srcCol)*bytesPerPixel + bandOffset
				block.Set(c, rr, decodeSample(raw, off, m.sample, s.fr.order))
			}
		}
		r = rEnd
	}

	return block, nil
}

// Statistics scans a band for min, max, mean and standard deviation,
// skipping no-data and NaN samples. Results are cached per band.
func (s *Source) Statistics(band int, progress rasterview.ProgressFunc) (rasterview.Statistics, error) {
	if err := s.checkBand(band); err != nil {
		return rasterview.Statistics{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stats, ok := s.stats[band]; ok {
		return stats, nil
	}

	m := s.levels[0]
	bandOffset := (band - 1) * m.sample.byteSize()
	bytesPerPixel := m.bands * m.sample.byteSize()

	var (
		count      int64
		sum, sumSq float64
		minV       = math.Inf(1)
		maxV       = math.Inf(-1)
	)

	for top := 0; top < m.height; top += statsChunkRows {
		rows := min(statsChunkRows, m.height-top)
		raw, err := s.readRegion(0, 0, top, m.width, rows)
		if err != nil {
			return rasterview.Statistics{}, err
		}
		for row := 0; row < rows; row++ {
			for col := 0; col < m.width; col++ {
				v := decodeSample(raw, (row*m.width+col)*bytesPerPixel+bandOffset, m.sample, s.fr.order)
				if math.IsNaN(v) || (m.hasNoData && v == m.noData) {
					continue
				}
				count++
				sum += v
				sumSq += v * v
				if v < minV {
					minV = v
				}
				if v > maxV {
					maxV = v
				}
			}
		}
		if progress != nil {
			progress("Calculating Statistics...", (top+rows)*100/m.height)
		}
	}

	if count == 0 {
		return rasterview.Statistics{}, &rasterview.StatisticsError{
			Band:   band,
			Reason: "no valid pixels to compute statistics",
		}
	}

	mean := sum / float64(count)
	variance := sumSq/float64(count) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stats := rasterview.Statistics{
		Min:    minV,
		Max:    maxV,
		Mean:   mean,
		StdDev: math.Sqrt(variance),
	}
	s.stats[band] = stats
	return stats, nil
}

// Histogram counts band samples into nBins equal width bins spanning
// [min, max]. No-data and out of range samples are not counted.
func (s *Source) Histogram(band int, minVal, maxVal float64, nBins int, progress rasterview.ProgressFunc) ([]int, error) {
	if err := s.checkBand(band); err != nil {
		return nil, err
	}
	if nBins <= 0 || maxVal <= minVal {
		return nil, &rasterview.InvalidParametersError{Reason: "invalid histogram range"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.levels[0]
	bandOffset := (band - 1) * m.sample.byteSize()
	bytesPerPixel := m.bands * m.sample.byteSize()
	binWidth := (maxVal - minVal) / float64(nBins)
	histo := make([]int, nBins)

	for top := 0; top < m.height; top += statsChunkRows {
		rows := min(statsChunkRows, m.height-top)
		raw, err := s.readRegion(0, 0, top, m.width, rows)
		if err != nil {
			return nil, err
		}
		for row := 0; row < rows; row++ {
			for col := 0; col < m.width; col++ {
				v := decodeSample(raw, (row*m.width+col)*bytesPerPixel+bandOffset, m.sample, s.fr.order)
				if math.IsNaN(v) || (m.hasNoData && v == m.noData) {
					continue
				}
				if v < minVal || v > maxVal {
					continue
				}
				bin := int((v - minVal) / binWidth)
				if bin >= nBins {
					bin = nBins - 1
				}
				histo[bin]++
			}
		}
		if progress != nil {
			progress("Calculating Histogram...", (top+rows)*100/m.height)
		}
	}

	return histo, nil
}
