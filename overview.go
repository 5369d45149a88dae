package rasterview

import "sort"

// OverviewInfo describes one resolution level of a raster. Index 0 is the
// full resolution raster itself and overview indexes start at 1, matching
// RasterSource.ReadBlock.
type OverviewInfo struct {
	XSize            int
	YSize            int
	FullResPixPerPix float64
	Index            int
}

// OverviewManager keeps the pyramid of resolution levels for a layer and
// picks the coarsest level that still oversamples the display.
type OverviewManager struct {
	overviews []OverviewInfo
}

// FullRes returns the level describing the full resolution raster.
func (m *OverviewManager) FullRes() OverviewInfo {
	return m.overviews[0]
}

// Levels returns all loaded levels, finest first.
func (m *OverviewManager) Levels() []OverviewInfo {
	return m.overviews
}

// LoadOverviewInfo reads the overview pyramid from the source. Only
// overviews present with identical dimensions on every displayed band are
// usable, others are skipped.
func (m *OverviewManager) LoadOverviewInfo(src RasterSource, bands []int) error {
	if len(bands) == 0 {
		return &InvalidParametersError{Reason: "no bands given"}
	}
	xsize, ysize := src.RasterSize()
	m.overviews = []OverviewInfo{{XSize: xsize, YSize: ysize, FullResPixPerPix: 1.0, Index: 0}}

	count := src.OverviewCount(bands[0])
	for index := 1; index <= count; index++ {
		ovx, ovy, err := src.OverviewSize(bands[0], index)
		if err != nil {
			return err
		}
		sameSize := true
		for _, band := range bands[1:] {
			bx, by, err := src.OverviewSize(band, index)
			if err != nil || bx != ovx || by != ovy {
				sameSize = false
				break
			}
		}
		if !sameSize {
			continue
		}
		fullrespixperpix := float64(xsize) / float64(ovx)
		m.overviews = append(m.overviews, OverviewInfo{
			XSize:            ovx,
			YSize:            ovy,
			FullResPixPerPix: fullrespixperpix,
			Index:            index,
		})
	}

	// largest area first so FindBestOverview can walk towards the coarse end
	sort.SliceStable(m.overviews, func(i, j int) bool {
		return m.overviews[i].XSize*m.overviews[i].YSize > m.overviews[j].XSize*m.overviews[j].YSize
	})
	return nil
}

// FindBestOverview returns the coarsest level whose resolution is still at
// least that of the display, so reads never undersample. imgPixPerWinPix is
// the full resolution raster pixels covered by one display pixel.
func (m *OverviewManager) FindBestOverview(imgPixPerWinPix float64) OverviewInfo {
	selected := m.overviews[0]
	for _, ovi := range m.overviews[1:] {
		if ovi.FullResPixPerPix > imgPixPerWinPix {
			break
		}
		selected = ovi
	}
	return selected
}
