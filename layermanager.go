package rasterview

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// LayerManager keeps the stack of layers being displayed, last entry on
// top, and keeps their extents consistent as they pan, zoom and resize
// together. A query point layer always sits above the stack.
type LayerManager struct {
	mu          sync.Mutex
	layers      []Layer
	queryPoints *QueryPointLayer
	fullExtent  WorldExtent
	haveExtent  bool
	opts        RenderOptions
}

// NewLayerManager returns an empty manager.
func NewLayerManager(opts RenderOptions) *LayerManager {
	return &LayerManager{
		queryPoints: NewQueryPointLayer(),
		opts:        opts,
	}
}

// QueryPointLayer returns the always present query point overlay.
func (m *LayerManager) QueryPointLayer() *QueryPointLayer {
	return m.queryPoints
}

// Layers returns the current stack, bottom first.
func (m *LayerManager) Layers() []Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

// AddRasterLayer opens a source as a new top layer. The new layer takes on
// the extent of the previous top layer when there is one.
func (m *LayerManager) AddRasterLayer(src RasterSource, width, height int, stretch *Stretch, title string) (*RasterLayer, error) {
	layer := NewRasterLayer(m.opts)
	layer.SetTitle(title)
	if err := layer.Open(src, width, height, stretch, nil); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if len(m.layers) > 0 {
		layer.SetWorldExtent(m.layers[len(m.layers)-1].WorldExtent())
	}
	// keep the query points lined up with the rasters
	m.queryPoints.SetDisplaySize(width, height)
	m.queryPoints.SetWorldExtent(layer.WorldExtent())
	m.mu.Unlock()

	if err := m.AddLayer(layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// AddLayer renders the layer and pushes it on top of the stack.
func (m *LayerManager) AddLayer(layer Layer) error {
	if err := layer.GetImage(); err != nil {
		return err
	}
	m.mu.Lock()
	m.layers = append(m.layers, layer)
	m.recalcFullExtentLocked()
	m.mu.Unlock()
	return nil
}

// RemoveTopLayer pops the top layer, if any.
func (m *LayerManager) RemoveTopLayer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.layers) > 0 {
		m.layers = m.layers[:len(m.layers)-1]
		m.recalcFullExtentLocked()
	}
}

// RemoveLayer removes the given layer from the stack.
func (m *LayerManager) RemoveLayer(layer Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l == layer {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.recalcFullExtentLocked()
			return
		}
	}
}

// MoveLayerUp renders the layer later so it sits further up the stack.
func (m *LayerManager) MoveLayerUp(layer Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l == layer && i < len(m.layers)-1 {
			m.layers[i], m.layers[i+1] = m.layers[i+1], m.layers[i]
			return
		}
	}
}

// MoveLayerDown renders the layer earlier so it sits further down the stack.
func (m *LayerManager) MoveLayerDown(layer Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l == layer && i > 0 {
			m.layers[i], m.layers[i-1] = m.layers[i-1], m.layers[i]
			return
		}
	}
}

// MoveLayerToTop makes the layer render last.
func (m *LayerManager) MoveLayerToTop(layer Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l == layer {
			m.layers = append(append(m.layers[:i], m.layers[i+1:]...), layer)
			return
		}
	}
}

// TopLayer returns the very top layer, raster or not, nil when empty.
func (m *LayerManager) TopLayer() Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.layers) == 0 {
		return nil
	}
	return m.layers[len(m.layers)-1]
}

// TopRasterLayer returns the top most raster layer, nil when there is none.
func (m *LayerManager) TopRasterLayer() *RasterLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.layers) - 1; i >= 0; i-- {
		if raster, ok := m.layers[i].(*RasterLayer); ok {
			return raster
		}
	}
	return nil
}

// TopDisplayedRasterLayer returns the top most raster layer that is
// displayed, nil when there is none.
func (m *LayerManager) TopDisplayedRasterLayer() *RasterLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.layers) - 1; i >= 0; i-- {
		if raster, ok := m.layers[i].(*RasterLayer); ok && raster.Displayed() {
			return raster
		}
	}
	return nil
}

// FullExtent returns the union of every layer's full extent. ok is false
// when no layer has one.
func (m *LayerManager) FullExtent() (WorldExtent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullExtent, m.haveExtent
}

func (m *LayerManager) recalcFullExtentLocked() {
	m.haveExtent = false
	for _, layer := range m.layers {
		extent, ok := layer.FullWorldExtent()
		if !ok {
			continue
		}
		if !m.haveExtent {
			m.fullExtent = extent
			m.haveExtent = true
			continue
		}
		if extent.Left < m.fullExtent.Left {
			m.fullExtent.Left = extent.Left
		}
		if extent.Top > m.fullExtent.Top {
			m.fullExtent.Top = extent.Top
		}
		if extent.Right > m.fullExtent.Right {
			m.fullExtent.Right = extent.Right
		}
		if extent.Bottom < m.fullExtent.Bottom {
			m.fullExtent.Bottom = extent.Bottom
		}
	}
}

// SetDisplaySize resizes every layer, keeping each zoom factor, then
// re-renders.
func (m *LayerManager) SetDisplaySize(width, height int) error {
	m.mu.Lock()
	for _, layer := range m.layers {
		layer.SetDisplaySize(width, height)
	}
	m.queryPoints.SetDisplaySize(width, height)
	m.mu.Unlock()
	return m.UpdateImages()
}

// MakeLayersConsistent pushes the reference layer's extent onto every other
// layer and the query point overlay. The extents must be settled before any
// rendering is dispatched.
func (m *LayerManager) MakeLayersConsistent(ref Layer) {
	extent := ref.WorldExtent()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, layer := range m.layers {
		if layer != ref {
			layer.SetWorldExtent(extent)
		}
	}
	m.queryPoints.SetWorldExtent(extent)
}

// SetWorldExtent sets the extent of the whole stack and re-renders.
func (m *LayerManager) SetWorldExtent(extent WorldExtent) error {
	m.mu.Lock()
	for _, layer := range m.layers {
		layer.SetWorldExtent(extent)
	}
	m.queryPoints.SetWorldExtent(extent)
	m.mu.Unlock()
	return m.UpdateImages()
}

// ZoomNativeResolution zooms so one raster pixel of the top raster layer
// covers one display pixel, preserving the view center.
func (m *LayerManager) ZoomNativeResolution() error {
	layer := m.TopRasterLayer()
	if layer == nil {
		return nil
	}
	coords := layer.Coords()
	center := coords.WorldCenter()
	coords.SetZoomFactor(1.0)
	coords.SetWorldCenter(center)
	m.MakeLayersConsistent(layer)
	return m.UpdateImages()
}

// ZoomFullExtent zooms the stack out to the union of every layer's extent.
func (m *LayerManager) ZoomFullExtent() error {
	layer := m.TopRasterLayer()
	extent, ok := m.FullExtent()
	if layer == nil || !ok {
		return nil
	}
	layer.SetWorldExtent(extent)
	m.MakeLayersConsistent(layer)
	return m.UpdateImages()
}

// SetStretchAllLayers applies the stretch to every raster layer.
func (m *LayerManager) SetStretchAllLayers(stretch *Stretch, local bool) error {
	var errs []error
	for _, layer := range m.Layers() {
		if raster, ok := layer.(*RasterLayer); ok {
			if err := raster.SetNewStretch(stretch, local); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// TimeseriesForward turns off the top most displayed layer, treating the
// stack as a timeseries oldest to newest. When everything ends up off, all
// layers are displayed again.
func (m *LayerManager) TimeseriesForward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.layers) - 1; i >= 0; i-- {
		if m.layers[i].Displayed() {
			m.layers[i].SetDisplayed(false)
			break
		}
	}
	for _, layer := range m.layers {
		if layer.Displayed() {
			return
		}
	}
	for _, layer := range m.layers {
		layer.SetDisplayed(true)
	}
}

// TimeseriesBackward turns the previous layer back on, the reverse of
// TimeseriesForward.
func (m *LayerManager) TimeseriesBackward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	allOn := true
	for _, layer := range m.layers {
		if !layer.Displayed() {
			allOn = false
			break
		}
	}
	if allOn && len(m.layers) > 0 {
		for _, layer := range m.layers {
			layer.SetDisplayed(false)
		}
		m.layers[0].SetDisplayed(true)
		return
	}
	var prev Layer
	for i := len(m.layers) - 1; i >= 0; i-- {
		if m.layers[i].Displayed() {
			break
		}
		prev = m.layers[i]
	}
	if prev != nil {
		prev.SetDisplayed(true)
	}
}

// UpdateImages re-renders every layer, in parallel when Workers allows it,
// and waits for all of them. Layer extents must not be mutated while this
// runs.
func (m *LayerManager) UpdateImages() error {
	layers := m.Layers()

	workers := m.opts.workers()
	if workers <= 1 {
		var errs []error
		for _, layer := range layers {
			if err := layer.GetImage(); err != nil {
				errs = append(errs, err)
			}
		}
		errs = append(errs, m.queryPoints.GetImage())
		return errors.Join(errs...)
	}

	jobs := make(chan Layer)
	errChan := make(chan error, len(layers))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for layer := range jobs {
				if err := layer.GetImage(); err != nil {
					errChan <- err
				}
			}
		}()
	}
	for _, layer := range layers {
		jobs <- layer
	}
	close(jobs)
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	errs = append(errs, m.queryPoints.GetImage())
	return errors.Join(errs...)
}

type managerStateJSON struct {
	NLayers int `json:"nlayers"`
}

// WriteState serializes every layer that supports it, preceded by a header
// record with the layer count.
func (m *LayerManager) WriteState(w io.Writer) error {
	layers := m.Layers()
	header, err := json.Marshal(managerStateJSON{NLayers: len(layers)})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", header); err != nil {
		return err
	}
	for _, layer := range layers {
		if err := layer.WriteState(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadState rebuilds layers from records written by WriteState. Raster
// sources cannot be serialized so the caller supplies open, which maps a
// layer title back to its source.
func (m *LayerManager) ReadState(r io.Reader, width, height int, open func(title string) (RasterSource, error)) error {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil {
		return &FileFormatError{Reason: err.Error()}
	}
	var header managerStateJSON
	if err := json.Unmarshal([]byte(line), &header); err != nil {
		return &FileFormatError{Reason: err.Error()}
	}

	for n := 0; n < header.NLayers; n++ {
		line, err := br.ReadString('\n')
		if err != nil {
			return &FileFormatError{Reason: err.Error()}
		}
		var state stateTypeJSON
		if err := json.Unmarshal([]byte(line), &state); err != nil {
			return &FileFormatError{Reason: err.Error()}
		}
		switch state.Type {
		case "raster":
			// peek at the record to find the source before rebuilding
			record, err := br.ReadString('\n')
			if err != nil {
				return &FileFormatError{Reason: err.Error()}
			}
			var raster rasterStateJSON
			if err := json.Unmarshal([]byte(record), &raster); err != nil {
				return &FileFormatError{Reason: err.Error()}
			}
			src, err := open(raster.Title)
			if err != nil {
				return err
			}
			layer, err := readRasterLayerRecord(br, raster, src, width, height, m.opts)
			if err != nil {
				return err
			}
			m.mu.Lock()
			if len(m.layers) > 0 {
				layer.SetWorldExtent(m.layers[len(m.layers)-1].WorldExtent())
			}
			m.queryPoints.SetDisplaySize(width, height)
			m.queryPoints.SetWorldExtent(layer.WorldExtent())
			m.mu.Unlock()
			if err := m.AddLayer(layer); err != nil {
				return err
			}
		default:
			return &FileFormatError{Reason: "unsupported layer type " + state.Type}
		}
	}
	return nil
}
