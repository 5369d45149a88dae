package rasterview

import (
	"math"

	"github.com/paulmach/orb"
)

// Geotransform is the 6 parameter affine transform between pixel and world
// coordinates, in the usual GDAL ordering:
//
//	worldX = gt[0] + col*gt[1] + row*gt[2]
//	worldY = gt[3] + col*gt[4] + row*gt[5]
type Geotransform [6]float64

// Validate returns an error if the transform cannot be inverted.
func (gt Geotransform) Validate() error {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) {
		return &InvalidParametersError{Reason: "geotransform is not invertible"}
	}
	return nil
}

// PixelToWorld converts a (col, row) pixel coordinate to world coordinates.
func (gt Geotransform) PixelToWorld(col, row float64) orb.Point {
	x := gt[0] + col*gt[1] + row*gt[2]
	y := gt[3] + col*gt[4] + row*gt[5]
	return orb.Point{x, y}
}

// WorldToPixel converts world coordinates to a fractional (col, row)
// pixel coordinate via the classic 2x2 matrix inversion.
func (gt Geotransform) WorldToPixel(p orb.Point) (col, row float64) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	col = (gt[5]*(p[0]-gt[0]) - gt[2]*(p[1]-gt[3])) / det
	row = (-gt[4]*(p[0]-gt[0]) + gt[1]*(p[1]-gt[3])) / det
	return col, row
}

// WorldExtent is a displayed region in world coordinates. Top is the Y of the
// top edge which, for the common north-up transform, is greater than Bottom.
type WorldExtent struct {
	Left, Top, Right, Bottom float64
}

// Bound returns the extent as a normalized orb.Bound.
func (e WorldExtent) Bound() orb.Bound {
	b := orb.Bound{
		Min: orb.Point{math.Min(e.Left, e.Right), math.Min(e.Top, e.Bottom)},
		Max: orb.Point{math.Max(e.Left, e.Right), math.Max(e.Top, e.Bottom)},
	}
	return b
}

// Center returns the middle of the extent.
func (e WorldExtent) Center() orb.Point {
	x := e.Left + (e.Right-e.Left)/2.0
	y := e.Bottom + (e.Top-e.Bottom)/2.0
	return orb.Point{x, y}
}

func (e WorldExtent) translated(dx, dy float64) WorldExtent {
	return WorldExtent{e.Left + dx, e.Top + dy, e.Right + dx, e.Bottom + dy}
}

// RasterCoords manages the relationship between the display coordinate
// system and the pixel and world coordinate systems of a single raster on a
// single display.
//
// Coordinate pairs are always given horizontal first, so row/col pairs
// appear as (col, row).
type RasterCoords struct {
	dspWidth  int
	dspHeight int
	// raster row/col living in the top-left corner of the display
	pixTop  float64
	pixLeft float64
	// and the bottom-right
	pixBottom float64
	pixRight  float64
	// ratio of raster pixels to display pixels, this is the zoom level
	imgPixPerWinPix float64
	geotransform    Geotransform
	datasetSizeX    int
	datasetSizeY    int
}

// SetDisplaySize records the size of the display window.
func (c *RasterCoords) SetDisplaySize(width, height int) {
	c.dspWidth = width
	c.dspHeight = height
}

// DisplaySize returns the current display window size.
func (c *RasterCoords) DisplaySize() (width, height int) {
	return c.dspWidth, c.dspHeight
}

// SetTopLeftPixel sets the raster (col, row) shown in the top-left corner of
// the display.
func (c *RasterCoords) SetTopLeftPixel(leftcol, toprow float64) {
	c.pixTop = toprow
	c.pixLeft = leftcol
}

// SetGeoTransformAndSize records the pixel to world transform and the raster
// dimensions.
func (c *RasterCoords) SetGeoTransformAndSize(gt Geotransform, xsize, ysize int) {
	c.geotransform = gt
	c.datasetSizeX = xsize
	c.datasetSizeY = ysize
}

// GeoTransform returns the current pixel to world transform.
func (c *RasterCoords) GeoTransform() Geotransform {
	return c.geotransform
}

// CalcZoomFactor derives the zoom factor from the currently set top-left
// pixel and the desired bottom-right pixel, for the current display size.
//
// When the aspect ratio of the requested region differs from the display, the
// region is grown along one axis so the whole of the requested region still
// fits. Either right or bottom is kept, the other is adjusted, so the pair is
// not stored, only the resulting zoom factor.
func (c *RasterCoords) CalcZoomFactor(right, bottom float64) {
	displayAspect := float64(c.dspWidth) / float64(c.dspHeight)
	rastWidth := right - c.pixLeft
	rastHeight := bottom - c.pixTop
	// degenerate drags collapse to a single row or column
	if rastWidth == 0 {
		rastWidth = 1
	}
	if rastHeight == 0 {
		rastHeight = 1
	}
	rastAspect := rastWidth / rastHeight

	if rastAspect < displayAspect {
		rastWidth = displayAspect * rastHeight
		right = c.pixLeft + rastWidth
	} else if rastAspect > displayAspect {
		rastHeight = rastWidth / displayAspect
		bottom = c.pixTop + rastHeight
	}

	c.imgPixPerWinPix = (right - c.pixLeft) / float64(c.dspWidth)
	c.pixBottom = bottom
	c.pixRight = right
}

// RecalcBottomRight recomputes the bottom-right pixel from the current
// top-left, display size and zoom factor. Call after the window is resized.
func (c *RasterCoords) RecalcBottomRight() {
	c.pixRight = c.pixLeft + c.imgPixPerWinPix*float64(c.dspWidth)
	c.pixBottom = c.pixTop + c.imgPixPerWinPix*float64(c.dspHeight)
}

// SetZoomFactor sets the zoom to the given raster pixels per display pixel
// and recomputes the bottom-right.
func (c *RasterCoords) SetZoomFactor(imgPixPerWinPix float64) {
	c.imgPixPerWinPix = imgPixPerWinPix
	c.RecalcBottomRight()
}

// ZoomFactor returns the current raster pixels per display pixel.
func (c *RasterCoords) ZoomFactor() float64 {
	return c.imgPixPerWinPix
}

// PixelWindow returns the raster pixel window currently mapped onto the
// display, as fractional (left, top, right, bottom) pixel coordinates.
func (c *RasterCoords) PixelWindow() (left, top, right, bottom float64) {
	return c.pixLeft, c.pixTop, c.pixRight, c.pixBottom
}

// Display2Pixel converts display units to a fractional raster (col, row).
func (c *RasterCoords) Display2Pixel(x, y float64) (col, row float64) {
	col = c.pixLeft + x*c.imgPixPerWinPix
	row = c.pixTop + y*c.imgPixPerWinPix
	return col, row
}

// Pixel2Display converts a raster (col, row) to truncated integer display
// units.
func (c *RasterCoords) Pixel2Display(col, row float64) (x, y int) {
	x = int((col - c.pixLeft) / c.imgPixPerWinPix)
	y = int((row - c.pixTop) / c.imgPixPerWinPix)
	return x, y
}

// Pixel2DisplayF converts a raster (col, row) to fractional display units.
func (c *RasterCoords) Pixel2DisplayF(col, row float64) (x, y float64) {
	x = (col - c.pixLeft) / c.imgPixPerWinPix
	y = (row - c.pixTop) / c.imgPixPerWinPix
	return x, y
}

// Pixel2World converts a raster (col, row) to world coordinates.
func (c *RasterCoords) Pixel2World(col, row float64) orb.Point {
	return c.geotransform.PixelToWorld(col, row)
}

// World2Pixel converts world coordinates to a fractional raster (col, row).
func (c *RasterCoords) World2Pixel(p orb.Point) (col, row float64) {
	return c.geotransform.WorldToPixel(p)
}

// Display2World converts display units to world coordinates.
func (c *RasterCoords) Display2World(dspX, dspY float64) orb.Point {
	col, row := c.Display2Pixel(dspX, dspY)
	return c.Pixel2World(col, row)
}

// World2Display converts world coordinates to truncated integer display
// units.
func (c *RasterCoords) World2Display(p orb.Point) (x, y int) {
	col, row := c.World2Pixel(p)
	return c.Pixel2Display(col, row)
}

// WorldExtent returns the extent of the displayed area in world coords.
func (c *RasterCoords) WorldExtent() WorldExtent {
	tl := c.Display2World(0, 0)
	br := c.Display2World(float64(c.dspWidth), float64(c.dspHeight))
	return WorldExtent{Left: tl[0], Top: tl[1], Right: br[0], Bottom: br[1]}
}

// SetWorldExtent sets the displayed area from a world extent. The top-left is
// honored exactly and the zoom is derived from the bottom-right via
// CalcZoomFactor, so the stored extent may be grown along one axis.
func (c *RasterCoords) SetWorldExtent(e WorldExtent) {
	left, top := c.World2Pixel(orb.Point{e.Left, e.Top})
	c.SetTopLeftPixel(left, top)
	right, bottom := c.World2Pixel(orb.Point{e.Right, e.Bottom})
	c.CalcZoomFactor(right, bottom)
}

// FullWorldExtent returns the extent of the whole dataset in world coords.
func (c *RasterCoords) FullWorldExtent() WorldExtent {
	tl := c.Pixel2World(0, 0)
	br := c.Pixel2World(float64(c.datasetSizeX-1), float64(c.datasetSizeY-1))
	return WorldExtent{Left: tl[0], Top: tl[1], Right: br[0], Bottom: br[1]}
}

// WorldCenter returns the center of the displayed extent.
func (c *RasterCoords) WorldCenter() orb.Point {
	return c.WorldExtent().Center()
}

// SetWorldCenter pans the displayed extent so it is centered on the given
// world coordinate, preserving the zoom factor.
func (c *RasterCoords) SetWorldCenter(p orb.Point) {
	cur := c.WorldCenter()
	c.SetWorldExtent(c.WorldExtent().translated(p[0]-cur[0], p[1]-cur[1]))
}

// VectorCoords manages coordinates for a layer that has no pixel grid of its
// own, such as the query point layer. It tracks a world extent and the world
// units covered by each display pixel.
type VectorCoords struct {
	dspWidth    int
	dspHeight   int
	extent      WorldExtent
	fullExtent  WorldExtent
	unitsPerPix float64
	haveExtent  bool
}

func (c *VectorCoords) recalc() {
	if c.haveExtent && c.dspWidth > 0 {
		across := c.extent.Right - c.extent.Left
		c.unitsPerPix = across / float64(c.dspWidth)
	}
}

// SetDisplaySize records the display window size and grows the extent to
// match, keeping the units per pixel.
func (c *VectorCoords) SetDisplaySize(width, height int) {
	c.dspWidth = width
	c.dspHeight = height
	if c.haveExtent {
		c.extent.Right = c.extent.Left + c.unitsPerPix*float64(width)
		c.extent.Bottom = c.extent.Top - c.unitsPerPix*float64(height)
	}
}

// DisplaySize returns the current display window size.
func (c *VectorCoords) DisplaySize() (width, height int) {
	return c.dspWidth, c.dspHeight
}

// WorldExtent returns the displayed extent.
func (c *VectorCoords) WorldExtent() WorldExtent {
	return c.extent
}

// SetWorldExtent sets the displayed extent.
func (c *VectorCoords) SetWorldExtent(e WorldExtent) {
	c.extent = e
	c.haveExtent = true
	c.recalc()
}

// FullWorldExtent returns the full extent of the layer.
func (c *VectorCoords) FullWorldExtent() WorldExtent {
	return c.fullExtent
}

// SetFullWorldExtent sets the full extent of the layer.
func (c *VectorCoords) SetFullWorldExtent(e WorldExtent) {
	c.fullExtent = e
}

// World2Display converts world coordinates to display units. ok is false when
// the point falls outside the display.
func (c *VectorCoords) World2Display(p orb.Point) (x, y float64, ok bool) {
	if !c.haveExtent {
		return 0, 0, false
	}
	xoff := p[0] - c.extent.Left
	yoff := c.extent.Top - p[1]
	if xoff < 0 || yoff < 0 {
		return 0, 0, false
	}
	x = xoff / c.unitsPerPix
	y = yoff / c.unitsPerPix
	if x >= float64(c.dspWidth) || y >= float64(c.dspHeight) {
		return 0, 0, false
	}
	return x, y, true
}

// Display2World converts display units to world coordinates.
func (c *VectorCoords) Display2World(dspX, dspY float64) orb.Point {
	return orb.Point{
		c.extent.Left + dspX*c.unitsPerPix,
		c.extent.Top - dspY*c.unitsPerPix,
	}
}

// WorldCenter returns the center of the displayed extent.
func (c *VectorCoords) WorldCenter() orb.Point {
	return c.extent.Center()
}

// SetWorldCenter pans the displayed extent to center on the given point.
func (c *VectorCoords) SetWorldCenter(p orb.Point) {
	cur := c.WorldCenter()
	c.SetWorldExtent(c.extent.translated(p[0]-cur[0], p[1]-cur[1]))
}
