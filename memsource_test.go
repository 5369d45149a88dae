package rasterview

import "math"

// memSource is an in-memory RasterSource for tests. Band data is stored at
// full resolution and overview reads decimate it on the fly, so every level
// is consistent with the full resolution values.
type memSource struct {
	xsize, ysize int
	bands        [][]float64
	float        bool
	gt           Geotransform
	noData       map[int]float64
	colorTables  map[int][]RGBA
	overviews    [][2]int
	// per band overview dimensions, overriding overviews, for testing
	// pyramids that differ between bands
	overviewsByBand map[int][][2]int
}

func newMemSource(xsize, ysize, nbands int) *memSource {
	s := &memSource{
		xsize:  xsize,
		ysize:  ysize,
		gt:     Geotransform{0, 1, 0, float64(ysize), 0, -1},
		noData: make(map[int]float64),
	}
	for i := 0; i < nbands; i++ {
		s.bands = append(s.bands, make([]float64, xsize*ysize))
	}
	return s
}

func (s *memSource) RasterSize() (int, int) { return s.xsize, s.ysize }
func (s *memSource) BandCount() int         { return len(s.bands) }

func (s *memSource) GeoTransform() (Geotransform, error) {
	return s.gt, nil
}

func (s *memSource) bandOverviews(band int) [][2]int {
	if s.overviewsByBand != nil {
		if ovs, ok := s.overviewsByBand[band]; ok {
			return ovs
		}
	}
	return s.overviews
}

func (s *memSource) OverviewCount(band int) int {
	return len(s.bandOverviews(band))
}

func (s *memSource) OverviewSize(band, index int) (int, int, error) {
	ovs := s.bandOverviews(band)
	if index < 1 || index > len(ovs) {
		return 0, 0, &InvalidParametersError{Reason: "no such overview"}
	}
	return ovs[index-1][0], ovs[index-1][1], nil
}

func (s *memSource) ReadBlock(band, overview, x, y, w, h, outWidth, outHeight int) (*Block, error) {
	if band < 1 || band > len(s.bands) {
		return nil, &InvalidParametersError{Reason: "no such band"}
	}
	sw, sh := s.xsize, s.ysize
	if overview > 0 {
		var err error
		sw, sh, err = s.OverviewSize(band, overview)
		if err != nil {
			return nil, err
		}
	}
	data := s.bands[band-1]
	block := NewBlock(outWidth, outHeight, s.float)
	for r := 0; r < outHeight; r++ {
		sy := y + r*h/outHeight
		fy := sy * s.ysize / sh
		for c := 0; c < outWidth; c++ {
			sx := x + c*w/outWidth
			fx := sx * s.xsize / sw
			block.Set(c, r, data[fy*s.xsize+fx])
		}
	}
	return block, nil
}

func (s *memSource) NoDataValue(band int) (float64, bool) {
	v, ok := s.noData[band]
	return v, ok
}

func (s *memSource) valid(band int) []float64 {
	nd, hasND := s.noData[band]
	out := make([]float64, 0, len(s.bands[band-1]))
	for _, v := range s.bands[band-1] {
		if math.IsNaN(v) || (hasND && v == nd) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (s *memSource) Statistics(band int, progress ProgressFunc) (Statistics, error) {
	data := s.valid(band)
	if len(data) == 0 {
		return Statistics{}, &StatisticsError{Band: band, Reason: "no valid samples"}
	}
	return computeLocalStats(data), nil
}

func (s *memSource) Histogram(band int, min, max float64, nBins int, progress ProgressFunc) ([]int, error) {
	return computeLocalHistogram(s.valid(band), min, max, nBins), nil
}

func (s *memSource) ColorTable(band int) []RGBA {
	if s.colorTables == nil {
		return nil
	}
	return s.colorTables[band]
}
