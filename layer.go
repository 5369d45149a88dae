package rasterview

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
)

// nonSquarePixelThreshold is the relative difference tolerated between the
// x and y pixel sizes, 0.1%.
const nonSquarePixelThreshold = 0.001

// PropertyInfo carries the name/value pairs shown in a properties dialog.
type PropertyInfo struct {
	FileInfo [][2]string
	Bands    []BandPropertyInfo
}

// BandPropertyInfo is the per band section of a PropertyInfo.
type BandPropertyInfo struct {
	Name string
	Info [][2]string
}

// AddFileInfo appends a file level name/value pair.
func (p *PropertyInfo) AddFileInfo(name, value string) {
	p.FileInfo = append(p.FileInfo, [2]string{name, value})
}

// AddBandInfo appends a section of name/value pairs for one band.
func (p *PropertyInfo) AddBandInfo(band string, info [][2]string) {
	p.Bands = append(p.Bands, BandPropertyInfo{Name: band, Info: info})
}

// RenderedTile holds the output of a raster render along with the raw
// samples and mask that produced it, so the LUT can be re-applied or a local
// stretch computed without re-reading the raster.
type RenderedTile struct {
	Image  *image.RGBA
	Blocks []*Block
	Mask   []uint8
}

// Layer is one entry in a LayerManager stack. Raster, query point and
// vector layers all satisfy it.
type Layer interface {
	// GetImage refreshes the rendered image from the current extent.
	GetImage() error
	// Image returns the last rendered image, nil when nothing is visible.
	Image() *image.RGBA
	// PropertiesInfo describes the layer for a properties dialog.
	PropertiesInfo() *PropertyInfo
	// WriteState serializes everything needed to recreate the layer.
	WriteState(w io.Writer) error

	SetDisplaySize(width, height int)
	WorldExtent() WorldExtent
	SetWorldExtent(e WorldExtent)
	// FullWorldExtent returns the layer's own full extent. ok is false for
	// layers with no extent of their own.
	FullWorldExtent() (WorldExtent, bool)

	Title() string
	Displayed() bool
	SetDisplayed(displayed bool)
}

// layerBase holds the state common to every layer type.
type layerBase struct {
	title     string
	displayed bool
	// quiet layers never become the title bar layer
	quiet bool
}

func newLayerBase() layerBase {
	return layerBase{displayed: true}
}

func (b *layerBase) Title() string            { return b.title }
func (b *layerBase) Displayed() bool          { return b.displayed }
func (b *layerBase) SetDisplayed(d bool)      { b.displayed = d }
func (b *layerBase) Quiet() bool              { return b.quiet }
func (b *layerBase) SetQuiet(q bool)          { b.quiet = q }

type bandNoData struct {
	value float64
	isSet bool
}

// RasterLayer renders one raster through a stretch and LUT.
type RasterLayer struct {
	layerBase
	src       RasterSource
	coords    RasterCoords
	overviews OverviewManager
	lut       *ViewerLUT
	stretch   *Stretch
	noData    []bandNoData
	tile      *RenderedTile
	opts      RenderOptions
	progress  ProgressFunc
}

// NewRasterLayer returns an unopened raster layer.
func NewRasterLayer(opts RenderOptions) *RasterLayer {
	return &RasterLayer{
		layerBase: newLayerBase(),
		lut:       NewViewerLUT(),
		opts:      opts,
	}
}

// Coords exposes the layer's coordinate state for pan and zoom operations.
func (l *RasterLayer) Coords() *RasterCoords {
	return &l.coords
}

// Source returns the raster being displayed.
func (l *RasterLayer) Source() RasterSource {
	return l.src
}

// Stretch returns the stretch currently applied.
func (l *RasterLayer) Stretch() *Stretch {
	return l.stretch
}

// LUT returns the layer's lookup table.
func (l *RasterLayer) LUT() *ViewerLUT {
	return l.lut
}

// SetProgress installs a callback for statistics and histogram progress.
func (l *RasterLayer) SetProgress(progress ProgressFunc) {
	l.progress = progress
}

// SetTitle sets the name shown for the layer.
func (l *RasterLayer) SetTitle(title string) {
	l.title = title
}

// Open attaches a source to the layer with the given display size and
// stretch, checks the geotransform is usable, loads the overview pyramid
// and builds the LUT. When lut is non nil it is used as-is instead of being
// computed, as happens when restoring saved state.
func (l *RasterLayer) Open(src RasterSource, width, height int, stretch *Stretch, lut *ViewerLUT) error {
	gt, err := src.GeoTransform()
	if err != nil {
		return err
	}
	if err := gt.Validate(); err != nil {
		return err
	}
	if gt[1] < 0 || gt[5] > 0 {
		if l.opts.AllowUngeoreferenced {
			// flip the pixel resolution so unmapped data renders north up
			gt[5] = -gt[5]
		} else {
			return &InvalidParametersError{Reason: "only north-up images allowed"}
		}
	}
	if gt[2] != 0 || gt[4] != 0 {
		return &InvalidParametersError{Reason: "only non-rotated images supported"}
	}
	// ideally gt[1] == -gt[5] but might not be due to rounding
	if (gt[1]+gt[5])/gt[1] > nonSquarePixelThreshold {
		return &InvalidParametersError{Reason: "only square pixels supported"}
	}

	l.src = src
	l.stretch = stretch

	if err := l.overviews.LoadOverviewInfo(src, stretch.Bands); err != nil {
		return err
	}

	fullres := l.overviews.FullRes()
	l.coords.SetDisplaySize(width, height)
	l.coords.SetGeoTransformAndSize(gt, fullres.XSize, fullres.YSize)
	// the LayerManager overrides this when other layers exist
	l.coords.SetTopLeftPixel(0, 0)
	l.coords.CalcZoomFactor(float64(fullres.XSize), float64(fullres.YSize))

	l.noData = make([]bandNoData, src.BandCount())
	for band := 1; band <= src.BandCount(); band++ {
		value, ok := src.NoDataValue(band)
		l.noData[band-1] = bandNoData{value: value, isSet: ok}
	}

	if lut != nil {
		l.lut = lut
		return nil
	}
	return l.lut.CreateLUT(src, stretch, nil, l.progress)
}

// Image returns the last rendered image, nil when the raster is entirely off
// the display.
func (l *RasterLayer) Image() *image.RGBA {
	if l.tile == nil {
		return nil
	}
	return l.tile.Image
}

// Tile returns the full result of the last render, including raw samples.
func (l *RasterLayer) Tile() *RenderedTile {
	return l.tile
}

func (l *RasterLayer) SetDisplaySize(width, height int) {
	l.coords.SetDisplaySize(width, height)
	l.coords.RecalcBottomRight()
}

func (l *RasterLayer) WorldExtent() WorldExtent {
	return l.coords.WorldExtent()
}

func (l *RasterLayer) SetWorldExtent(e WorldExtent) {
	l.coords.SetWorldExtent(e)
}

func (l *RasterLayer) FullWorldExtent() (WorldExtent, bool) {
	return l.coords.FullWorldExtent(), true
}

// GetImage refreshes the rendered tile. It selects the overview, works out
// the pixel window visible on the display, reads each stretch band and
// applies the LUT.
func (l *RasterLayer) GetImage() error {
	imgpix := l.coords.ZoomFactor()
	selectedovi := l.overviews.FindBestOverview(imgpix)

	rasterXSize, rasterYSize := l.src.RasterSize()
	pixLeft, pixTop, pixRight, pixBottom := l.coords.PixelWindow()

	// nowhere near the display, render nothing at all
	if (pixTop < 0 && pixBottom < 0) ||
		(pixLeft < 0 && pixRight < 0) ||
		(pixLeft > float64(rasterXSize) && pixRight > float64(rasterXSize)) ||
		(pixTop > float64(rasterYSize) && pixBottom > float64(rasterYSize)) {
		l.tile = nil
		return nil
	}

	fullrespixperovpix := selectedovi.FullResPixPerPix
	pixTop = math.Max(pixTop, 0)
	pixLeft = math.Max(pixLeft, 0)
	pixBottom = math.Min(pixBottom, float64(rasterYSize))
	pixRight = math.Min(pixRight, float64(rasterXSize))

	ovtop := int(pixTop / fullrespixperovpix)
	ovleft := int(pixLeft / fullrespixperovpix)
	ovbottom := int(math.Ceil(pixBottom / fullrespixperovpix))
	ovright := int(math.Ceil(pixRight / fullrespixperovpix))
	if ovtop < 0 {
		ovtop = 0
	}
	if ovleft < 0 {
		ovleft = 0
	}
	if ovbottom > selectedovi.YSize {
		ovbottom = selectedovi.YSize
	}
	if ovright > selectedovi.XSize {
		ovright = selectedovi.XSize
	}
	ovxsize := ovright - ovleft
	ovysize := ovbottom - ovtop

	// display coordinates of the corners of the raster data. Often (0, 0)
	// but need not be if there is blank area left of or above the raster
	dspRastLeftF, dspRastTopF := l.coords.Pixel2DisplayF(pixLeft, pixTop)
	dspRastRightF, dspRastBottomF := l.coords.Pixel2DisplayF(pixRight, pixBottom)
	dspRastLeft := int(math.Round(dspRastLeftF))
	dspRastTop := int(math.Round(dspRastTopF))
	dspRastRight := int(math.Round(dspRastRightF))
	dspRastBottom := int(math.Round(dspRastBottomF))
	dspRastXSize := dspRastRight - dspRastLeft
	dspRastYSize := dspRastBottom - dspRastTop

	var dspLeftExtra, dspTopExtra, dspRightExtra, dspBottomExtra int
	if imgpix < 1 {
		// partial pixels around the edge, since reads are in whole pixels
		dspRastAbsLeft, dspRastAbsTop := l.coords.Pixel2Display(
			math.Floor(pixLeft), math.Floor(pixTop))
		dspRastAbsRight, dspRastAbsBottom := l.coords.Pixel2Display(
			math.Ceil(pixRight), math.Ceil(pixBottom))
		dspLeftExtra = int(float64(dspRastLeft-dspRastAbsLeft) / fullrespixperovpix)
		dspTopExtra = int(float64(dspRastTop-dspRastAbsTop) / fullrespixperovpix)
		dspRightExtra = int(float64(dspRastAbsRight-dspRastRight) / fullrespixperovpix)
		dspBottomExtra = int(float64(dspRastAbsBottom-dspRastBottom) / fullrespixperovpix)
		// be aware rounding errors
		if dspRightExtra < 0 {
			dspRightExtra = 0
		}
		if dspBottomExtra < 0 {
			dspBottomExtra = 0
		}
	}

	dspWidth, dspHeight := l.coords.DisplaySize()

	// clamp the data window to the display
	sliceLeft := clampInt(dspRastLeft, 0, dspWidth)
	sliceTop := clampInt(dspRastTop, 0, dspHeight)
	sliceRight := clampInt(dspRastLeft+dspRastXSize, 0, dspWidth)
	sliceBottom := clampInt(dspRastTop+dspRastYSize, 0, dspHeight)

	mask := make([]uint8, dspWidth*dspHeight)
	for i := range mask {
		mask[i] = MaskBackground
	}
	for y := sliceTop; y < sliceBottom; y++ {
		row := mask[y*dspWidth : (y+1)*dspWidth]
		for x := sliceLeft; x < sliceRight; x++ {
			row[x] = MaskImage
		}
	}

	readBand := func(band int) (*Block, error) {
		full := NewBlock(dspWidth, dspHeight, false)
		var windowed *Block
		var err error
		if imgpix >= 1.0 {
			windowed, err = l.src.ReadBlock(band, selectedovi.Index,
				ovleft, ovtop, ovxsize, ovysize, dspRastXSize, dspRastYSize)
			if err != nil {
				return nil, err
			}
		} else {
			native, err := l.src.ReadBlock(band, selectedovi.Index,
				ovleft, ovtop, ovxsize, ovysize, ovxsize, ovysize)
			if err != nil {
				return nil, err
			}
			windowed = replicateBlock(native, dspRastXSize, dspRastYSize,
				dspLeftExtra, dspTopExtra, dspRightExtra, dspBottomExtra)
		}
		full.Float = windowed.Float
		for y := sliceTop; y < sliceBottom; y++ {
			srcY := y - dspRastTop
			for x := sliceLeft; x < sliceRight; x++ {
				full.Set(x, y, windowed.At(x-dspRastLeft, srcY))
			}
		}
		return full, nil
	}

	bands := l.stretch.Bands
	if len(bands) >= 3 {
		blocks := make([]*Block, 0, len(bands))
		var nodataMask []bool
		for _, band := range bands {
			block, err := readBand(band)
			if err != nil {
				return err
			}
			nodataMask = l.foldNoData(nodataMask, block, band, mask)
			blocks = append(blocks, block)
		}
		applyNoData(mask, nodataMask)

		img, err := l.lut.ApplyLUTRGB(blocks, mask)
		if err != nil {
			return err
		}
		l.tile = &RenderedTile{Image: img, Blocks: blocks, Mask: mask}
		return nil
	}

	block, err := readBand(bands[0])
	if err != nil {
		return err
	}
	nodataMask := l.foldNoData(nil, block, bands[0], mask)
	applyNoData(mask, nodataMask)

	img, err := l.lut.ApplyLUTSingle(block, mask)
	if err != nil {
		return err
	}
	l.tile = &RenderedTile{Image: img, Blocks: []*Block{block}, Mask: mask}
	return nil
}

// foldNoData merges a band's no-data test into the accumulated no-data mask.
// A pixel is only no-data when every band agrees, so a valid sample in any
// band keeps the pixel displayed.
func (l *RasterLayer) foldNoData(acc []bool, block *Block, band int, mask []uint8) []bool {
	nd := l.noData[band-1]
	if !nd.isSet {
		return acc
	}
	if acc == nil {
		acc = make([]bool, len(block.Data))
		for i, v := range block.Data {
			acc[i] = mask[i] == MaskImage && v == nd.value
		}
		return acc
	}
	for i, v := range block.Data {
		acc[i] = acc[i] && mask[i] == MaskImage && v == nd.value
	}
	return acc
}

func applyNoData(mask []uint8, nodataMask []bool) {
	if nodataMask == nil {
		return
	}
	for i, nodata := range nodataMask {
		if nodata {
			mask[i] = MaskNoData
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetNewStretch replaces the stretch and re-renders. With local set the
// stretch statistics come from the currently displayed samples rather than
// the whole raster.
func (l *RasterLayer) SetNewStretch(newstretch *Stretch, local bool) error {
	newbands := !equalBands(l.stretch.Bands, newstretch.Bands)
	if newbands {
		if err := l.overviews.LoadOverviewInfo(l.src, newstretch.Bands); err != nil {
			return err
		}
	}

	var tile *RenderedTile
	if local && !newbands {
		// stats can come straight from the last read
		tile = l.tile
	}

	if err := l.lut.CreateLUT(l.src, newstretch, tile, l.progress); err != nil {
		return err
	}
	l.stretch = newstretch
	if err := l.GetImage(); err != nil {
		return err
	}

	if local && newbands {
		// the render above loaded the new bands, now the local stats exist
		if err := l.lut.CreateLUT(l.src, newstretch, l.tile, l.progress); err != nil {
			return err
		}
		return l.GetImage()
	}
	return nil
}

// HighlightRows recolors the selected LUT rows and re-applies the LUT to the
// last read data.
func (l *RasterLayer) HighlightRows(color RGBA, selection []bool) error {
	if err := l.lut.HighlightRows(color, selection); err != nil {
		return err
	}
	return l.reapplySingle()
}

// SetColorTableLookup installs a surrogate color lookup and re-applies the
// LUT to the last read data.
func (l *RasterLayer) SetColorTableLookup(lookup []int, surrogate []RGBA) error {
	if err := l.lut.SetColorTableLookup(lookup, surrogate); err != nil {
		return err
	}
	return l.reapplySingle()
}

func (l *RasterLayer) reapplySingle() error {
	if l.tile == nil || len(l.tile.Blocks) != 1 {
		return nil
	}
	img, err := l.lut.ApplyLUTSingle(l.tile.Blocks[0], l.tile.Mask)
	if err != nil {
		return err
	}
	l.tile.Image = img
	return nil
}

// PropertiesInfo summarizes the raster for display to the user.
func (l *RasterLayer) PropertiesInfo() *PropertyInfo {
	info := &PropertyInfo{}
	xsize, ysize := l.src.RasterSize()
	info.AddFileInfo("Title:", l.title)
	info.AddFileInfo("Number of Bands:", fmt.Sprintf("%d", l.src.BandCount()))
	info.AddFileInfo("Size:", fmt.Sprintf("%d x %d", xsize, ysize))
	if gt, err := l.src.GeoTransform(); err == nil {
		info.AddFileInfo("Pixel Size:", fmt.Sprintf("%f x %f", gt[1], gt[5]))
		origin := gt.PixelToWorld(0, 0)
		info.AddFileInfo("Origin:", fmt.Sprintf("%f, %f", origin[0], origin[1]))
	}
	info.AddFileInfo("Overview Levels:", fmt.Sprintf("%d", len(l.overviews.Levels())-1))

	for band := 1; band <= l.src.BandCount(); band++ {
		var bandInfo [][2]string
		nd := l.noData[band-1]
		if nd.isSet {
			bandInfo = append(bandInfo, [2]string{"No Data Value:", fmt.Sprintf("%g", nd.value)})
		} else {
			bandInfo = append(bandInfo, [2]string{"No Data Value:", "Not Set"})
		}
		if ct := l.src.ColorTable(band); ct != nil {
			bandInfo = append(bandInfo, [2]string{"Color Table:", fmt.Sprintf("%d entries", len(ct))})
		}
		info.AddBandInfo(fmt.Sprintf("Band %d", band), bandInfo)
	}
	return info
}

type rasterStateJSON struct {
	Title     string `json:"title"`
	Displayed bool   `json:"displayed"`
	Quiet     bool   `json:"quiet"`
	Stretch   string `json:"stretch"`
}

// WriteState serializes the layer as newline delimited JSON, a type record
// then the layer record then the LUT dump.
func (l *RasterLayer) WriteState(w io.Writer) error {
	if err := writeStateType(w, "raster"); err != nil {
		return err
	}
	stretchStr, err := l.stretch.ToJSON()
	if err != nil {
		return err
	}
	state := rasterStateJSON{
		Title:     l.title,
		Displayed: l.displayed,
		Quiet:     l.quiet,
		Stretch:   stretchStr,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return err
	}
	return l.lut.SaveTo(w)
}

// ReadRasterLayerState rebuilds a raster layer from records written by
// WriteState. The caller supplies the reopened source since the state does
// not embed raster data. The type record must already have been consumed.
func ReadRasterLayerState(r *bufio.Reader, src RasterSource, width, height int, opts RenderOptions) (*RasterLayer, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, &FileFormatError{Reason: err.Error()}
	}
	var state rasterStateJSON
	if err := json.Unmarshal([]byte(line), &state); err != nil {
		return nil, &FileFormatError{Reason: err.Error()}
	}
	return readRasterLayerRecord(r, state, src, width, height, opts)
}

func readRasterLayerRecord(r *bufio.Reader, state rasterStateJSON, src RasterSource, width, height int, opts RenderOptions) (*RasterLayer, error) {
	stretch, err := StretchFromJSON(state.Stretch)
	if err != nil {
		return nil, err
	}
	lut, err := ReadLUT(r, stretch)
	if err != nil {
		return nil, err
	}

	layer := NewRasterLayer(opts)
	layer.title = state.Title
	layer.displayed = state.Displayed
	layer.quiet = state.Quiet
	if err := layer.Open(src, width, height, stretch, lut); err != nil {
		return nil, err
	}
	return layer, nil
}

type stateTypeJSON struct {
	Type string `json:"type"`
}

func writeStateType(w io.Writer, layerType string) error {
	data, err := json.Marshal(stateTypeJSON{Type: layerType})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func equalBands(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
