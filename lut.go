package rasterview

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
)

// Mask values used alongside pixel data through the render pipeline.
const (
	MaskImage      uint8 = 0
	MaskNoData     uint8 = 1
	MaskBackground uint8 = 2
)

// DefaultLUTSize is the LUT length used when no attribute table overrides
// it.
const DefaultLUTSize = 256

// lutExtra is the trailing entries reserved in every LUT for the no-data,
// background and NaN colors, in that order.
const lutExtra = 3

// Channel positions within an RGBA entry and within ViewerLUT.rgb.
const (
	lutRed = iota
	lutGreen
	lutBlue
	lutAlpha
)

var rgbChannelNames = [4]string{"red", "green", "blue", "alpha"}

// BandLUTInfo describes how raw values of one band are scaled into LUT
// indices, plus where the reserved sentinel entries live.
type BandLUTInfo struct {
	Scale           float64 `json:"scale"`
	Offset          float64 `json:"offset"`
	LUTSize         int     `json:"lutsize"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	NoDataIndex     int     `json:"nodata_index"`
	BackgroundIndex int     `json:"background_index"`
	NaNIndex        int     `json:"nan_index"`
}

// ToJSON serializes the info to a single JSON record.
func (bi *BandLUTInfo) ToJSON() (string, error) {
	data, err := json.Marshal(bi)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// BandLUTInfoFromJSON parses a record written by ToJSON.
func BandLUTInfoFromJSON(data string) (*BandLUTInfo, error) {
	bi := &BandLUTInfo{}
	if err := json.Unmarshal([]byte(data), bi); err != nil {
		return nil, &FileFormatError{Reason: err.Error()}
	}
	return bi, nil
}

// ViewerLUT turns raw raster samples into display colors. It holds either a
// single band LUT of RGBA entries (color table, greyscale, pseudocolor) or
// one LUT per channel for the RGB and RGBA modes.
type ViewerLUT struct {
	// single band LUT, indexed by scaled sample value
	single []RGBA
	// per channel LUTs for the RGB modes
	rgb [4][]uint8

	info      *BandLUTInfo
	rgbInfo   [3]*BandLUTInfo
	alphaInfo *BandLUTInfo

	// original single LUT held while rows are highlighted
	backup []RGBA

	// surrogate color lookup for thematic recoloring
	surrogateLookup []int
	surrogateLUT    []RGBA
}

// NewViewerLUT returns an empty LUT. CreateLUT or ReadLUT must be called
// before it can be applied.
func NewViewerLUT() *ViewerLUT {
	return &ViewerLUT{}
}

func linearRamp(lutsize int) []uint8 {
	ramp := make([]uint8, lutsize)
	if lutsize == 1 {
		return ramp
	}
	for i := range ramp {
		ramp[i] = uint8(float64(i) * 255.0 / float64(lutsize-1))
	}
	return ramp
}

func (l *ViewerLUT) statisticsFor(src RasterSource, band int, localdata []float64, progress ProgressFunc) (Statistics, error) {
	if localdata == nil {
		stats, err := src.Statistics(band, progress)
		if err != nil {
			return Statistics{}, err
		}
		return sanitizeStats(stats), nil
	}
	return sanitizeStats(computeLocalStats(localdata)), nil
}

func (l *ViewerLUT) histogramFor(src RasterSource, band int, minVal, maxVal float64, localdata []float64, progress ProgressFunc) ([]int, error) {
	numBins := int(math.Ceil(maxVal - minVal))
	if numBins < 1 {
		// float data
		numBins = 255
	}
	if localdata == nil {
		return src.Histogram(band, minVal, maxVal, numBins, progress)
	}
	return computeLocalHistogram(localdata, minVal, maxVal, numBins), nil
}

// createStretchLUT builds the 0..255 ramp and scaling info for one band.
// bandIdx is the position of the band within the stretch, for the Var modes.
func (l *ViewerLUT) createStretchLUT(src RasterSource, band, bandIdx int, stretch *Stretch,
	lutsize int, localdata []float64, progress ProgressFunc) ([]uint8, *BandLUTInfo, error) {

	if stretch.StretchMode == StretchModeNone {
		// linear ramp across the whole range of possible values
		info := &BandLUTInfo{Scale: 1.0, Offset: 0.0, LUTSize: lutsize,
			Min: 0, Max: float64(lutsize - 1)}
		return linearRamp(lutsize), info, nil
	}

	stats, err := l.statisticsFor(src, band, localdata, progress)
	if err != nil {
		return nil, nil, err
	}

	var stretchMin, stretchMax float64
	params := stretch.Param.ForBand(bandIdx)

	switch stretch.baseStretchMode() {
	case StretchModeLinear:
		// NaN parameters mean take the value from the data
		stretchMin = stats.Min
		stretchMax = stats.Max
		if len(params) > 0 && !math.IsNaN(params[0]) {
			stretchMin = params[0]
		}
		if len(params) > 1 && !math.IsNaN(params[1]) {
			stretchMax = params[1]
		}

	case StretchModeStdDev:
		nstddev := DefaultStdDev
		if len(params) > 0 && !math.IsNaN(params[0]) {
			nstddev = params[0]
		}
		stretchMin = stats.Mean - nstddev*stats.StdDev
		if stretchMin < stats.Min {
			stretchMin = stats.Min
		}
		stretchMax = stats.Mean + nstddev*stats.StdDev
		if stretchMax > stats.Max {
			stretchMax = stats.Max
		}

	case StretchModeHist:
		histmin := DefaultHistMin
		histmax := DefaultHistMax
		if len(params) > 0 && !math.IsNaN(params[0]) {
			histmin = params[0]
		}
		if len(params) > 1 && !math.IsNaN(params[1]) {
			histmax = params[1]
		}
		histo, err := l.histogramFor(src, band, stats.Min, stats.Max, localdata, progress)
		if err != nil {
			return nil, nil, err
		}
		numBins := len(histo)
		sumPxl := 0
		for _, count := range histo {
			sumPxl += count
		}
		bandLower := float64(sumPxl) * histmin
		bandUpper := float64(sumPxl) * histmax

		// walk in from each end until the tail fraction is covered
		stretchMin = stats.Min
		stretchMax = stats.Max
		sumVals := 0
		for i := 0; i < numBins; i++ {
			sumVals += histo[i]
			if float64(sumVals) > bandLower {
				stretchMin = stats.Min + (stats.Max-stats.Min)*float64(i)/float64(numBins)
				break
			}
		}
		sumVals = 0
		for i := numBins - 1; i >= 0; i-- {
			sumVals += histo[i]
			if float64(sumVals) > bandUpper {
				stretchMax = stats.Min + (stats.Max-stats.Min)*float64(i+1)/float64(numBins)
				break
			}
		}

	default:
		return nil, nil, &InvalidParametersError{Reason: "unsupported stretch mode"}
	}

	if stretch.AttributeTableSize == 0 {
		// a LUT for the range of the data
		if stretchMin == stretchMax {
			// keep the scale non zero for flat data
			stretchMax = stretchMin + 1
		}
		info := &BandLUTInfo{
			// lutsize-1 keeps the computed indices below lutsize
			Scale:   (stretchMax - stretchMin) / float64(lutsize-1),
			Offset:  -stretchMin,
			LUTSize: lutsize,
			Min:     stretchMin,
			Max:     stretchMax,
		}
		return linearRamp(lutsize), info, nil
	}

	// attribute table sized LUT, indexed directly by the raw integer value
	intMin := int(stretchMin)
	intMax := int(stretchMax)
	if intMin == intMax {
		intMax = intMin + 1
	}
	if intMin < 0 || intMax > lutsize {
		return nil, nil, &InvalidParametersError{
			Reason: "length of attribute table doesn't match range of data"}
	}
	lut := make([]uint8, lutsize)
	span := intMax - intMin
	for i := intMin; i < intMax; i++ {
		if span > 1 {
			lut[i] = uint8(float64(i-intMin) * 255.0 / float64(span-1))
		}
	}
	for i := intMax; i < lutsize; i++ {
		lut[i] = 255
	}
	info := &BandLUTInfo{Scale: 1, Offset: 0, LUTSize: lutsize,
		Min: float64(intMin), Max: float64(intMax)}
	return lut, info, nil
}

// loadColorTable builds the single band LUT from a stored color table.
func (l *ViewerLUT) loadColorTable(src RasterSource, band int, stretch *Stretch) error {
	ct := src.ColorTable(band)
	if ct == nil {
		return &InvalidColorTableError{Band: band, Reason: "no color table present"}
	}
	ctcount := len(ct)
	lut := make([]RGBA, ctcount+lutExtra)
	copy(lut, ct)
	lut[ctcount] = stretch.NoData
	lut[ctcount+1] = stretch.Background
	lut[ctcount+2] = stretch.NaN

	l.single = lut
	l.info = &BandLUTInfo{
		Scale: 1.0, Offset: 0.0, LUTSize: ctcount,
		Min: 0, Max: float64(ctcount - 1),
		NoDataIndex:     ctcount,
		BackgroundIndex: ctcount + 1,
		NaNIndex:        ctcount + 2,
	}
	return nil
}

func (s *Stretch) lutSize() int {
	if s.AttributeTableSize > 0 {
		return s.AttributeTableSize
	}
	return DefaultLUTSize
}

// localBandData flattens one band of a previously rendered tile down to the
// samples actually inside the raster, for a local stretch.
func localBandData(tile *RenderedTile, idx int) []float64 {
	block := tile.Blocks[idx]
	out := make([]float64, 0, len(block.Data))
	for i, v := range block.Data {
		if tile.Mask[i] == MaskImage {
			out = append(out, v)
		}
	}
	return out
}

// CreateLUT builds the lookup table for the given stretch. When local is non
// nil it must be a tile returned by an Apply function and the stretch
// statistics are computed from its visible samples instead of the whole
// raster.
func (l *ViewerLUT) CreateLUT(src RasterSource, stretch *Stretch, local *RenderedTile, progress ProgressFunc) error {
	// any highlights happen afresh
	l.backup = nil

	if stretch.Mode == ModeDefault || stretch.StretchMode == StretchModeDefault {
		return &InvalidStretchError{Reason: "must set mode and stretchmode"}
	}

	localFor := func(idx int) []float64 {
		if local == nil || idx >= len(local.Blocks) {
			return nil
		}
		return localBandData(local, idx)
	}

	switch stretch.Mode {
	case ModeColorTable:
		if len(stretch.Bands) != 1 {
			return &InvalidParametersError{Reason: "specify one band when opening a color table image"}
		}
		if stretch.StretchMode != StretchModeNone {
			return &InvalidParametersError{Reason: "stretchmode should be set to none for color tables"}
		}
		return l.loadColorTable(src, stretch.Bands[0], stretch)

	case ModeGreyscale, ModePseudoColor:
		if len(stretch.Bands) != 1 {
			return &InvalidParametersError{Reason: "specify one band for a single band image"}
		}
		band := stretch.Bands[0]
		lutsize := stretch.lutSize()

		ramp, info, err := l.createStretchLUT(src, band, 0, stretch, lutsize, localFor(0), progress)
		if err != nil {
			return err
		}
		info.NoDataIndex = lutsize
		info.BackgroundIndex = lutsize + 1
		info.NaNIndex = lutsize + 2

		var channels [3][]uint8
		if stretch.Mode == ModePseudoColor {
			for ch := 0; ch < 3; ch++ {
				channels[ch], err = rampChannel(ch, stretch.RampName, lutsize)
				if err != nil {
					return err
				}
			}
		} else {
			channels = [3][]uint8{ramp, ramp, ramp}
		}

		lut := make([]RGBA, lutsize+lutExtra)
		for i := 0; i < lutsize; i++ {
			lut[i] = RGBA{channels[0][i], channels[1][i], channels[2][i], 255}
		}
		lut[info.NoDataIndex] = stretch.NoData
		lut[info.BackgroundIndex] = stretch.Background
		lut[info.NaNIndex] = stretch.NaN

		l.single = lut
		l.info = info
		return nil

	case ModeRGB, ModeRGBA:
		nbands := 3
		if stretch.Mode == ModeRGBA {
			nbands = 4
		}
		if len(stretch.Bands) != nbands {
			return &InvalidParametersError{
				Reason: fmt.Sprintf("must specify %d bands for this display mode", nbands)}
		}
		lutsize := stretch.lutSize()

		for ch := 0; ch < 3; ch++ {
			band := stretch.Bands[ch]
			ramp, info, err := l.createStretchLUT(src, band, ch, stretch, lutsize, localFor(ch), progress)
			if err != nil {
				return err
			}
			lut := make([]uint8, lutsize+lutExtra)
			copy(lut, ramp)
			lut[lutsize] = stretch.NoData[ch]
			lut[lutsize+1] = stretch.Background[ch]
			lut[lutsize+2] = stretch.NaN[ch]

			info.NoDataIndex = lutsize
			info.BackgroundIndex = lutsize + 1
			info.NaNIndex = lutsize + 2
			l.rgbInfo[ch] = info
			l.rgb[ch] = lut
		}

		alpha := make([]uint8, lutsize+lutExtra)
		if stretch.Mode == ModeRGBA {
			// the fourth band drives per pixel opacity via its own stretch
			ramp, info, err := l.createStretchLUT(src, stretch.Bands[3], 3, stretch, lutsize, localFor(3), progress)
			if err != nil {
				return err
			}
			copy(alpha, ramp)
			info.NoDataIndex = lutsize
			info.BackgroundIndex = lutsize + 1
			info.NaNIndex = lutsize + 2
			l.alphaInfo = info
		} else {
			for i := 0; i < lutsize; i++ {
				alpha[i] = 255
			}
			l.alphaInfo = nil
		}
		alpha[lutsize] = stretch.NoData[lutAlpha]
		alpha[lutsize+1] = stretch.Background[lutAlpha]
		alpha[lutsize+2] = stretch.NaN[lutAlpha]
		l.rgb[lutAlpha] = alpha

		l.single = nil
		l.info = nil
		return nil
	}

	return &InvalidParametersError{Reason: "unsupported display mode"}
}

// lutIndex scales one sample into a LUT index. NaN detection has to happen
// before the clip since a clipped NaN is undefined.
func lutIndex(v float64, isFloat bool, info *BandLUTInfo, maskVal uint8, lutLen int) int {
	var idx int
	if isFloat && math.IsNaN(v) {
		idx = info.NaNIndex
	} else {
		if v < info.Min {
			v = info.Min
		}
		if v > info.Max {
			v = info.Max
		}
		idx = int((v + info.Offset) / info.Scale)
	}
	switch maskVal {
	case MaskNoData:
		idx = info.NoDataIndex
	case MaskBackground:
		idx = info.BackgroundIndex
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= lutLen {
		idx = lutLen - 1
	}
	return idx
}

// ApplyLUTSingle applies a single band LUT, returning the colored tile.
// mask must be the same length as the block with MaskNoData and
// MaskBackground set where those colors are wanted.
func (l *ViewerLUT) ApplyLUTSingle(data *Block, mask []uint8) (*image.RGBA, error) {
	if l.single == nil {
		return nil, &InvalidColorTableError{Reason: "stretch not loaded yet"}
	}
	if len(mask) != len(data.Data) {
		return nil, &InvalidParametersError{Reason: "mask size does not match data"}
	}

	img := image.NewRGBA(image.Rect(0, 0, data.Width, data.Height))
	useSurrogate := l.surrogateLookup != nil && l.surrogateLUT != nil

	for i, v := range data.Data {
		idx := lutIndex(v, data.Float, l.info, mask[i], len(l.single))
		entry := l.single[idx]

		if useSurrogate && mask[i] == MaskImage && !math.IsNaN(v) {
			// raw values index the lookup column, non zero entries override
			sval := int(v)
			if sval < 0 {
				sval = 0
			}
			if sval >= len(l.surrogateLookup) {
				sval = len(l.surrogateLookup) - 1
			}
			lk := l.surrogateLookup[sval]
			if lk < 0 {
				lk = 0
			}
			if lk >= len(l.surrogateLUT) {
				lk = len(l.surrogateLUT) - 1
			}
			if lk != 0 {
				entry = l.surrogateLUT[lk]
			}
		}

		off := i * 4
		img.Pix[off] = entry[lutRed]
		img.Pix[off+1] = entry[lutGreen]
		img.Pix[off+2] = entry[lutBlue]
		img.Pix[off+3] = entry[lutAlpha]
	}
	return img, nil
}

// ApplyLUTRGB applies the per channel LUTs to 3 bands of imagery, or 4 when
// the LUT was created for the RGBA display mode.
func (l *ViewerLUT) ApplyLUTRGB(blocks []*Block, mask []uint8) (*image.RGBA, error) {
	if l.rgb[lutRed] == nil {
		return nil, &InvalidColorTableError{Reason: "stretch not loaded yet"}
	}
	want := 3
	if l.alphaInfo != nil {
		want = 4
	}
	if len(blocks) != want {
		return nil, &InvalidParametersError{
			Reason: fmt.Sprintf("expected %d bands of data", want)}
	}
	npix := len(blocks[0].Data)
	if len(mask) != npix {
		return nil, &InvalidParametersError{Reason: "mask size does not match data"}
	}

	img := image.NewRGBA(image.Rect(0, 0, blocks[0].Width, blocks[0].Height))

	for ch := 0; ch < 3; ch++ {
		block := blocks[ch]
		info := l.rgbInfo[ch]
		lut := l.rgb[ch]
		for i, v := range block.Data {
			idx := lutIndex(v, block.Float, info, mask[i], len(lut))
			img.Pix[i*4+ch] = lut[idx]
		}
	}

	alphaLUT := l.rgb[lutAlpha]
	if l.alphaInfo != nil {
		block := blocks[3]
		for i, v := range block.Data {
			idx := lutIndex(v, block.Float, l.alphaInfo, mask[i], len(alphaLUT))
			img.Pix[i*4+lutAlpha] = alphaLUT[idx]
		}
	} else {
		// alpha has no stretch of its own so it borrows the blue channel's
		// sentinel indices
		info := l.rgbInfo[lutBlue]
		blue := blocks[lutBlue]
		for i := range mask {
			value := uint8(255)
			switch {
			case mask[i] == MaskNoData:
				value = alphaLUT[info.NoDataIndex]
			case mask[i] == MaskBackground:
				value = alphaLUT[info.BackgroundIndex]
			case blue.Float && math.IsNaN(blue.Data[i]):
				value = alphaLUT[info.NaNIndex]
			}
			img.Pix[i*4+lutAlpha] = value
		}
	}
	return img, nil
}

// HighlightRows recolors the LUT rows where selection is true, restoring any
// previous highlight first. Only meaningful for single band LUTs, where rows
// correspond to thematic classes.
func (l *ViewerLUT) HighlightRows(color RGBA, selection []bool) error {
	if l.single == nil {
		if l.rgb[lutRed] != nil {
			return &InvalidColorTableError{Reason: "can only highlight thematic data"}
		}
		return &InvalidColorTableError{Reason: "stretch not loaded yet"}
	}

	if l.backup == nil {
		l.backup = make([]RGBA, len(l.single))
		copy(l.backup, l.single)
	} else {
		copy(l.single, l.backup)
	}

	// selection covers the data rows only, never the sentinel slots
	for i, selected := range selection {
		if i >= len(l.single) {
			break
		}
		if selected {
			l.single[i] = color
		}
	}
	return nil
}

// SetColorTableLookup installs a surrogate color lookup. Raw values index
// lookup, and non zero results index surrogate to override the displayed
// color. Pass nil lookup to reset.
func (l *ViewerLUT) SetColorTableLookup(lookup []int, surrogate []RGBA) error {
	if l.single == nil {
		if l.rgb[lutRed] != nil {
			return &InvalidColorTableError{Reason: "can only lookup thematic data"}
		}
		return &InvalidColorTableError{Reason: "stretch not loaded yet"}
	}
	l.surrogateLookup = lookup
	if lookup != nil && surrogate != nil {
		l.surrogateLUT = surrogate
	}
	return nil
}

type lutChannelJSON struct {
	Code string  `json:"code"`
	Data []uint8 `json:"data"`
}

type lutHeaderJSON struct {
	NBands int `json:"nbands"`
}

// SaveTo writes the LUT as newline delimited JSON records so it can be
// stored in saved viewer state and reloaded without touching the raster.
func (l *ViewerLUT) SaveTo(w io.Writer) error {
	writeLine := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	if l.single != nil {
		if err := writeLine(lutHeaderJSON{NBands: 1}); err != nil {
			return err
		}
		if err := writeLine(l.info); err != nil {
			return err
		}
		for ch := 0; ch < 4; ch++ {
			column := make([]uint8, len(l.single))
			for i, entry := range l.single {
				column[i] = entry[ch]
			}
			if err := writeLine(lutChannelJSON{Code: rgbChannelNames[ch], Data: column}); err != nil {
				return err
			}
		}
		return nil
	}

	if l.rgb[lutRed] == nil {
		return &InvalidColorTableError{Reason: "stretch not loaded yet"}
	}
	nbands := 3
	if l.alphaInfo != nil {
		nbands = 4
	}
	if err := writeLine(lutHeaderJSON{NBands: nbands}); err != nil {
		return err
	}
	for ch := 0; ch < nbands; ch++ {
		info := l.alphaInfo
		if ch < 3 {
			info = l.rgbInfo[ch]
		}
		if err := writeLine(info); err != nil {
			return err
		}
		if err := writeLine(lutChannelJSON{Code: rgbChannelNames[ch], Data: l.rgb[ch]}); err != nil {
			return err
		}
	}
	return nil
}

// ReadLUT reads a LUT saved with SaveTo. The stretch supplies the alpha
// sentinel colors for 3 band LUTs since those are not stored in the file.
// The reader is shared so records following the LUT stay unconsumed.
func ReadLUT(r *bufio.Reader, stretch *Stretch) (*ViewerLUT, error) {
	readLine := func() (string, error) {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return "", &FileFormatError{Reason: "unexpected end of LUT records"}
			}
			return "", err
		}
		return line, nil
	}

	line, err := readLine()
	if err != nil {
		return nil, err
	}
	var header lutHeaderJSON
	if err := json.Unmarshal([]byte(line), &header); err != nil {
		return nil, &FileFormatError{Reason: err.Error()}
	}

	l := NewViewerLUT()
	if header.NBands == 1 {
		line, err = readLine()
		if err != nil {
			return nil, err
		}
		if l.info, err = BandLUTInfoFromJSON(line); err != nil {
			return nil, err
		}
		l.single = make([]RGBA, l.info.LUTSize+lutExtra)
		for n := 0; n < 4; n++ {
			line, err = readLine()
			if err != nil {
				return nil, err
			}
			var channel lutChannelJSON
			if err := json.Unmarshal([]byte(line), &channel); err != nil {
				return nil, &FileFormatError{Reason: err.Error()}
			}
			ch, err := channelIndex(channel.Code)
			if err != nil {
				return nil, err
			}
			if len(channel.Data) != len(l.single) {
				return nil, &FileFormatError{Reason: "channel length does not match lutsize"}
			}
			for i, v := range channel.Data {
				l.single[i][ch] = v
			}
		}
		return l, nil
	}

	if header.NBands != 3 && header.NBands != 4 {
		return nil, &FileFormatError{Reason: "unexpected band count in LUT file"}
	}
	for n := 0; n < header.NBands; n++ {
		line, err = readLine()
		if err != nil {
			return nil, err
		}
		info, err := BandLUTInfoFromJSON(line)
		if err != nil {
			return nil, err
		}
		line, err = readLine()
		if err != nil {
			return nil, err
		}
		var channel lutChannelJSON
		if err := json.Unmarshal([]byte(line), &channel); err != nil {
			return nil, &FileFormatError{Reason: err.Error()}
		}
		ch, err := channelIndex(channel.Code)
		if err != nil {
			return nil, err
		}
		if ch == lutAlpha {
			l.alphaInfo = info
		} else {
			l.rgbInfo[ch] = info
		}
		l.rgb[ch] = channel.Data
	}

	if header.NBands == 3 {
		// alpha is not stored for 3 band LUTs, rebuild it from the stretch
		info := l.rgbInfo[lutRed]
		alpha := make([]uint8, info.LUTSize+lutExtra)
		for i := range alpha {
			alpha[i] = 255
		}
		alpha[info.NoDataIndex] = stretch.NoData[lutAlpha]
		alpha[info.BackgroundIndex] = stretch.Background[lutAlpha]
		alpha[info.NaNIndex] = stretch.NaN[lutAlpha]
		l.rgb[lutAlpha] = alpha
	}
	return l, nil
}

func channelIndex(code string) (int, error) {
	for i, name := range rgbChannelNames {
		if name == code {
			return i, nil
		}
	}
	return 0, &FileFormatError{Reason: "unknown channel code " + code}
}
