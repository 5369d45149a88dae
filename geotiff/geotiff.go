package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	rasterview "github.com/tuiview/rasterview"
)

// GeoKey IDs.
const (
	geoKeyModelType      = 1024
	geoKeyRasterType     = 1025
	geoKeyGeographicType = 2048
	geoKeyProjectedCS    = 3072
)

// Compression codes.
const (
	compressionNone    = 1
	compressionLZW     = 5
	compressionJPEG    = 6
	compressionDeflate = 8
)

// Photometric interpretation codes.
const (
	photometricWhiteIsZero = 0
	photometricBlackIsZero = 1
	photometricRGB         = 2
	photometricPalette     = 3
)

// sampleType is the in memory interpretation of a band sample, derived
// from the BitsPerSample and SampleFormat tags.
type sampleType int

const (
	sampleUint8 sampleType = iota
	sampleInt8
	sampleUint16
	sampleInt16
	sampleUint32
	sampleInt32
	sampleFloat32
	sampleFloat64
)

func (t sampleType) byteSize() int {
	switch t {
	case sampleUint8, sampleInt8:
		return 1
	case sampleUint16, sampleInt16:
		return 2
	case sampleFloat64:
		return 8
	default:
		return 4
	}
}

func (t sampleType) isFloat() bool {
	return t == sampleFloat32 || t == sampleFloat64
}

// decodeSample reads one sample from raw pixel bytes as float64.
func decodeSample(data []byte, offset int, t sampleType, order binary.ByteOrder) float64 {
	switch t {
	case sampleUint8:
		return float64(data[offset])
	case sampleInt8:
		return float64(int8(data[offset]))
	case sampleUint16:
		return float64(order.Uint16(data[offset:]))
	case sampleInt16:
		return float64(int16(order.Uint16(data[offset:])))
	case sampleUint32:
		return float64(order.Uint32(data[offset:]))
	case sampleInt32:
		return float64(int32(order.Uint32(data[offset:])))
	case sampleFloat32:
		return float64(math.Float32frombits(order.Uint32(data[offset:])))
	case sampleFloat64:
		return math.Float64frombits(order.Uint64(data[offset:]))
	default:
		return float64(data[offset])
	}
}

// metadata holds everything needed to read pixels from one IFD.
type metadata struct {
	width        int
	height       int
	bands        int
	sample       sampleType
	compression  uint16
	predictor    uint16
	photometric  uint16
	planarConfig uint16
	tiled        bool
	tileWidth    int
	tileHeight   int
	rowsPerStrip int

	// georeferencing, only meaningful on the main image
	pixelScale   []float64
	tiepoint     []float64
	transform    []float64
	geoKeys      map[uint16]uint16
	noData       float64
	hasNoData    bool
	colorTable   []rasterview.RGBA
}

func tagIntDefault(d *directory, id uint16, def int) int {
	if t := d.tag(id); t != nil {
		if v, ok := t.firstInt(); ok {
			return int(v)
		}
	}
	return def
}

// parseMetadata extracts the layout and georeferencing of one IFD.
func parseMetadata(fr *fileReader, d *directory) (*metadata, error) {
	m := &metadata{
		width:        tagIntDefault(d, tagImageWidth, 0),
		height:       tagIntDefault(d, tagImageLength, 0),
		bands:        tagIntDefault(d, tagSamplesPerPixel, 1),
		compression:  uint16(tagIntDefault(d, tagCompression, compressionNone)),
		predictor:    uint16(tagIntDefault(d, tagPredictor, 1)),
		photometric:  uint16(tagIntDefault(d, tagPhotometric, photometricBlackIsZero)),
		planarConfig: uint16(tagIntDefault(d, tagPlanarConfig, 1)),
		geoKeys:      make(map[uint16]uint16),
	}
	if m.width <= 0 || m.height <= 0 {
		return nil, fmt.Errorf("image has no dimensions")
	}
	if m.planarConfig != 1 {
		return nil, fmt.Errorf("unsupported planar configuration: %d", m.planarConfig)
	}

	bits := tagIntDefault(d, tagBitsPerSample, 8)
	format := tagIntDefault(d, tagSampleFormat, 1)
	sample, err := sampleTypeFor(bits, format)
	if err != nil {
		return nil, err
	}
	m.sample = sample

	if d.tag(tagTileOffsets) != nil {
		m.tiled = true
		m.tileWidth = tagIntDefault(d, tagTileWidth, 256)
		m.tileHeight = tagIntDefault(d, tagTileLength, 256)
	} else if d.tag(tagStripOffsets) != nil {
		m.rowsPerStrip = tagIntDefault(d, tagRowsPerStrip, m.height)
	} else {
		return nil, fmt.Errorf("image is neither tiled nor stripped")
	}

	if t := d.tag(tagModelPixelScale); t != nil {
		m.pixelScale = t.floats()
	}
	if t := d.tag(tagModelTiepoint); t != nil {
		m.tiepoint = t.floats()
	}
	if t := d.tag(tagModelTransformation); t != nil {
		m.transform = t.floats()
	}

	parseGeoKeys(d, m)
	parseNoData(d, m)

	if err := parseColorTable(fr, d, m); err != nil {
		return nil, err
	}

	return m, nil
}

func sampleTypeFor(bits, format int) (sampleType, error) {
	switch {
	case bits == 8 && format == 1:
		return sampleUint8, nil
	case bits == 8 && format == 2:
		return sampleInt8, nil
	case bits == 16 && format == 1:
		return sampleUint16, nil
	case bits == 16 && format == 2:
		return sampleInt16, nil
	case bits == 32 && format == 1:
		return sampleUint32, nil
	case bits == 32 && format == 2:
		return sampleInt32, nil
	case bits == 32 && format == 3:
		return sampleFloat32, nil
	case bits == 64 && format == 3:
		return sampleFloat64, nil
	default:
		return sampleUint8, fmt.Errorf("unsupported sample layout: %d bits format %d", bits, format)
	}
}

// parseGeoKeys walks the GeoKeyDirectory. Only SHORT valued keys stored
// directly in the directory are kept, which covers the CRS codes.
func parseGeoKeys(d *directory, m *metadata) {
	t := d.tag(tagGeoKeyDirectory)
	if t == nil {
		return
	}
	values := t.uint16s()
	if len(values) < 4 {
		return
	}
	numKeys := int(values[3])
	for i := 4; i+3 < len(values) && (i-4)/4 < numKeys; i += 4 {
		keyID := values[i]
		location := values[i+1]
		if location == 0 {
			m.geoKeys[keyID] = values[i+3]
		}
	}
}

// parseNoData reads the GDAL no-data tag, an ASCII encoded number.
func parseNoData(d *directory, m *metadata) {
	t := d.tag(tagGDALNoData)
	if t == nil {
		return
	}
	s, ok := t.text()
	if !ok {
		return
	}
	s = strings.TrimSpace(strings.Trim(s, "\x00"))
	if s == "" || strings.EqualFold(s, "nan") {
		return
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return
	}
	m.noData = v
	m.hasNoData = true
}

// parseColorTable reads the palette of a palette color image. The map is
// stored as three planes of 16 bit values.
func parseColorTable(fr *fileReader, d *directory, m *metadata) error {
	if m.photometric != photometricPalette {
		return nil
	}
	t := d.tag(tagColorMap)
	if t == nil {
		return nil
	}
	if t.deferred {
		if err := fr.loadTag(d, tagColorMap); err != nil {
			return err
		}
	}
	values := t.uint16s()
	if len(values) == 0 || len(values)%3 != 0 {
		return fmt.Errorf("malformed color map: %d values", len(values))
	}
	n := len(values) / 3
	m.colorTable = make([]rasterview.RGBA, n)
	for i := 0; i < n; i++ {
		m.colorTable[i] = rasterview.RGBA{
			uint8(values[i] >> 8),
			uint8(values[n+i] >> 8),
			uint8(values[2*n+i] >> 8),
			255,
		}
	}
	return nil
}

// geotransform derives the pixel to world transform from either the
// transformation matrix or the tiepoint and pixel scale tags. When the
// image carries no georeferencing the GDAL default of one pixel per unit
// at the origin is returned.
func (m *metadata) geotransform() rasterview.Geotransform {
	if len(m.transform) >= 16 {
		t := m.transform
		return rasterview.Geotransform{t[3], t[0], t[1], t[7], t[4], t[5]}
	}
	if len(m.tiepoint) >= 6 && len(m.pixelScale) >= 2 && m.pixelScale[0] != 0 {
		px, py := m.tiepoint[0], m.tiepoint[1]
		gx, gy := m.tiepoint[3], m.tiepoint[4]
		sx, sy := m.pixelScale[0], m.pixelScale[1]
		return rasterview.Geotransform{
			gx - px*sx, sx, 0,
			gy + py*sy, 0, -sy,
		}
	}
	return rasterview.Geotransform{0, 1, 0, 0, 0, 1}
}

// CRS returns the EPSG code of the image as a string such as
// "EPSG:32755", or "" when no code is recorded.
func (m *metadata) crs() string {
	if code, ok := m.geoKeys[geoKeyProjectedCS]; ok && code != 0 && code != 32767 {
		return fmt.Sprintf("EPSG:%d", code)
	}
	if code, ok := m.geoKeys[geoKeyGeographicType]; ok && code != 0 && code != 32767 {
		return fmt.Sprintf("EPSG:%d", code)
	}
	return ""
}
