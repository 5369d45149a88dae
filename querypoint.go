package rasterview

import (
	"encoding/json"
	"fmt"
	"image"
	"io"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// queryCursorHalfSize is the default half width of a query point cross, in
// display pixels.
const queryCursorHalfSize = 8

// QueryPoint marks a world location on the display, usually the pixel a
// query window is inspecting.
type QueryPoint struct {
	ID       int
	Easting  float64
	Northing float64
	Color    RGBA
	// HalfSize of the cross in display pixels, 0 means the default
	HalfSize int
}

// queryPointItem wraps a point for the spatial index.
type queryPointItem struct {
	point QueryPoint
}

// Bounds implements rtreego.Spatial. Points get a tiny non zero extent
// since the tree cannot hold zero area rectangles.
func (q *queryPointItem) Bounds() rtreego.Rect {
	const epsilon = 1e-9
	rect, _ := rtreego.NewRect(
		rtreego.Point{q.point.Easting, q.point.Northing},
		[]float64{epsilon, epsilon})
	return rect
}

// QueryPointLayer displays query point crosses over the raster layers. It
// keeps its points in an R-tree so only points inside the viewport are
// considered when rendering.
type QueryPointLayer struct {
	layerBase
	coords VectorCoords
	points map[int]*queryPointItem
	tree   *rtreego.Rtree
	image  *image.RGBA
}

// NewQueryPointLayer returns an empty query point layer.
func NewQueryPointLayer() *QueryPointLayer {
	base := newLayerBase()
	base.title = "Query Points"
	return &QueryPointLayer{
		layerBase: base,
		points:    make(map[int]*queryPointItem),
		tree:      rtreego.NewTree(2, 25, 50),
	}
}

// Coords exposes the layer's coordinate state.
func (l *QueryPointLayer) Coords() *VectorCoords {
	return &l.coords
}

// SetQueryPoint adds or replaces the query point with the given id.
func (l *QueryPointLayer) SetQueryPoint(p QueryPoint) {
	if p.HalfSize == 0 {
		p.HalfSize = queryCursorHalfSize
	}
	if existing, ok := l.points[p.ID]; ok {
		l.tree.Delete(existing)
	}
	item := &queryPointItem{point: p}
	l.points[p.ID] = item
	l.tree.Insert(item)
}

// RemoveQueryPoint removes the query point with the given id, if present.
func (l *QueryPointLayer) RemoveQueryPoint(id int) {
	if item, ok := l.points[id]; ok {
		l.tree.Delete(item)
		delete(l.points, id)
	}
}

func (l *QueryPointLayer) SetDisplaySize(width, height int) {
	l.coords.SetDisplaySize(width, height)
}

func (l *QueryPointLayer) WorldExtent() WorldExtent {
	return l.coords.WorldExtent()
}

func (l *QueryPointLayer) SetWorldExtent(e WorldExtent) {
	l.coords.SetWorldExtent(e)
}

func (l *QueryPointLayer) FullWorldExtent() (WorldExtent, bool) {
	return WorldExtent{}, false
}

// Image returns the last rendered overlay, transparent except at the
// crosses.
func (l *QueryPointLayer) Image() *image.RGBA {
	return l.image
}

// GetImage redraws the query point crosses for the current extent.
func (l *QueryPointLayer) GetImage() error {
	width, height := l.coords.DisplaySize()
	if width == 0 || height == 0 {
		l.image = nil
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	bound := l.coords.WorldExtent().Bound()
	lengths := []float64{
		bound.Max[0] - bound.Min[0],
		bound.Max[1] - bound.Min[1],
	}
	if lengths[0] <= 0 || lengths[1] <= 0 {
		l.image = img
		return nil
	}
	rect, err := rtreego.NewRect(rtreego.Point{bound.Min[0], bound.Min[1]}, lengths)
	if err != nil {
		return &InvalidParametersError{Reason: err.Error()}
	}

	for _, spatial := range l.tree.SearchIntersect(rect) {
		item := spatial.(*queryPointItem)
		p := item.point
		x, y, ok := l.coords.World2Display(orb.Point{p.Easting, p.Northing})
		if !ok {
			continue
		}
		drawCross(img, int(x), int(y), p.HalfSize, p.Color)
	}
	l.image = img
	return nil
}

// drawCross paints a one pixel wide cross centered at (cx, cy), clipped to
// the image.
func drawCross(img *image.RGBA, cx, cy, halfSize int, color RGBA) {
	bounds := img.Bounds()
	set := func(x, y int) {
		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			return
		}
		off := img.PixOffset(x, y)
		img.Pix[off] = color[lutRed]
		img.Pix[off+1] = color[lutGreen]
		img.Pix[off+2] = color[lutBlue]
		img.Pix[off+3] = color[lutAlpha]
	}
	for x := cx - halfSize; x <= cx+halfSize; x++ {
		set(x, cy)
	}
	for y := cy - halfSize; y <= cy+halfSize; y++ {
		set(cx, y)
	}
}

// PropertiesInfo describes the layer for a properties dialog.
func (l *QueryPointLayer) PropertiesInfo() *PropertyInfo {
	info := &PropertyInfo{}
	info.AddFileInfo("Title:", l.title)
	info.AddFileInfo("Query Points:", fmt.Sprintf("%d", len(l.points)))
	return info
}

type queryPointStateJSON struct {
	Points []QueryPoint `json:"points"`
}

// WriteState serializes the query points as a type record then a single
// record with every point.
func (l *QueryPointLayer) WriteState(w io.Writer) error {
	if err := writeStateType(w, "querypoint"); err != nil {
		return err
	}
	points := make([]QueryPoint, 0, len(l.points))
	for _, item := range l.points {
		points = append(points, item.point)
	}
	data, err := json.Marshal(queryPointStateJSON{Points: points})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
