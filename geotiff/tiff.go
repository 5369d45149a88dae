// Package geotiff reads GeoTIFF rasters, including Cloud Optimized
// GeoTIFFs over HTTP, and exposes them through rasterview.RasterSource.
package geotiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	magicLittleEndian = 0x4949 // "II"
	magicBigEndian    = 0x4D4D // "MM"
	classicVersion    = 42
)

// fieldType is a TIFF field type code.
type fieldType uint16

const (
	typeByte      fieldType = 1
	typeASCII     fieldType = 2
	typeShort     fieldType = 3
	typeLong      fieldType = 4
	typeRational  fieldType = 5
	typeSByte     fieldType = 6
	typeUndefined fieldType = 7
	typeSShort    fieldType = 8
	typeSLong     fieldType = 9
	typeSRational fieldType = 10
	typeFloat     fieldType = 11
	typeDouble    fieldType = 12
)

// size returns the byte size of a single value of the type.
func (t fieldType) size() uint32 {
	switch t {
	case typeByte, typeASCII, typeSByte, typeUndefined:
		return 1
	case typeShort, typeSShort:
		return 2
	case typeLong, typeSLong, typeFloat:
		return 4
	case typeRational, typeSRational, typeDouble:
		return 8
	default:
		return 1
	}
}

// Tag IDs used by the reader.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagPhotometric         = 262
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfig        = 284
	tagPredictor           = 317
	tagColorMap            = 320
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoAsciiParams      = 34737
	tagGDALNoData          = 42113
)

// tag is one directory entry. value is nil while deferred is set; large
// arrays such as tile offsets stay deferred until first use so opening a
// remote file costs only a couple of range requests.
type tag struct {
	id       uint16
	ftype    fieldType
	count    uint32
	offset   uint32
	value    interface{}
	deferred bool
}

// firstInt returns the first value as an integer for tags that hold
// integral types.
func (t *tag) firstInt() (int64, bool) {
	switch v := t.value.(type) {
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case []uint8:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case []uint16:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case []uint32:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	}
	return 0, false
}

// uint32s returns the value as a slice of uint32, used for the strip and
// tile offset arrays.
func (t *tag) uint32s() []uint32 {
	switch v := t.value.(type) {
	case uint32:
		return []uint32{v}
	case []uint32:
		return v
	case uint16:
		return []uint32{uint32(v)}
	case []uint16:
		out := make([]uint32, len(v))
		for i, x := range v {
			out[i] = uint32(x)
		}
		return out
	}
	return nil
}

// uint16s returns the value as a slice of uint16, used for the geokey
// directory and color map.
func (t *tag) uint16s() []uint16 {
	switch v := t.value.(type) {
	case uint16:
		return []uint16{v}
	case []uint16:
		return v
	}
	return nil
}

// floats returns the value as a slice of float64 for DOUBLE, FLOAT and
// RATIONAL tags.
func (t *tag) floats() []float64 {
	switch v := t.value.(type) {
	case float64:
		return []float64{v}
	case []float64:
		return v
	case float32:
		return []float64{float64(v)}
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case [2]uint32:
		if v[1] != 0 {
			return []float64{float64(v[0]) / float64(v[1])}
		}
	}
	return nil
}

// text returns the value of an ASCII tag.
func (t *tag) text() (string, bool) {
	s, ok := t.value.(string)
	return s, ok
}

// directory is one IFD, main image or overview.
type directory struct {
	tags  map[uint16]*tag
	next  uint32
	order binary.ByteOrder
}

func (d *directory) tag(id uint16) *tag {
	return d.tags[id]
}

// fileReader parses the TIFF structure of a file and loads tag values,
// deferring the large offset arrays until they are needed.
type fileReader struct {
	r     io.ReadSeeker
	order binary.ByteOrder
	dirs  []*directory
}

// ifdReadAhead is how much is read around each IFD in one go. Small tag
// values usually sit right after the directory, so a single read covers
// the directory and most values. Matters a lot over HTTP.
const ifdReadAhead = 16 * 1024

func newFileReader(r io.ReadSeeker) (*fileReader, error) {
	fr := &fileReader{r: r}

	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header: %w", err)
	}

	switch binary.LittleEndian.Uint16(header[0:2]) {
	case magicLittleEndian:
		fr.order = binary.LittleEndian
	case magicBigEndian:
		fr.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF magic: 0x%04x", binary.LittleEndian.Uint16(header[0:2]))
	}

	if version := fr.order.Uint16(header[2:4]); version != classicVersion {
		return nil, fmt.Errorf("invalid TIFF version: %d", version)
	}

	offset := fr.order.Uint32(header[4:8])
	for offset != 0 {
		dir, err := fr.readDirectory(offset)
		if err != nil {
			return nil, err
		}
		fr.dirs = append(fr.dirs, dir)
		offset = dir.next
	}
	if len(fr.dirs) == 0 {
		return nil, fmt.Errorf("TIFF file has no directories")
	}

	return fr, nil
}

// readDirectory reads one IFD and the tag values near it.
func (fr *fileReader) readDirectory(offset uint32) (*directory, error) {
	if _, err := fr.r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to directory: %w", err)
	}

	// One read covers the directory and the values stored just past it.
	buf := make([]byte, ifdReadAhead)
	n, err := io.ReadFull(fr.r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	buf = buf[:n]
	if len(buf) < 2 {
		return nil, fmt.Errorf("directory at %d truncated", offset)
	}

	tagCount := int(fr.order.Uint16(buf[0:2]))
	dirEnd := 2 + tagCount*12 + 4
	if len(buf) < dirEnd {
		return nil, fmt.Errorf("directory at %d truncated", offset)
	}

	dir := &directory{
		tags:  make(map[uint16]*tag, tagCount),
		next:  fr.order.Uint32(buf[dirEnd-4 : dirEnd]),
		order: fr.order,
	}

	for i := 0; i < tagCount; i++ {
		entry := buf[2+i*12 : 2+(i+1)*12]
		t := &tag{
			id:     fr.order.Uint16(entry[0:2]),
			ftype:  fieldType(fr.order.Uint16(entry[2:4])),
			count:  fr.order.Uint32(entry[4:8]),
			offset: fr.order.Uint32(entry[8:12]),
		}
		dir.tags[t.id] = t
	}

	for _, t := range dir.tags {
		// The offset and byte count arrays can run to thousands of
		// entries, load them on first use instead.
		if t.id == tagStripOffsets || t.id == tagStripByteCounts ||
			t.id == tagTileOffsets || t.id == tagTileByteCounts {
			t.deferred = true
			continue
		}

		size := t.ftype.size() * t.count
		if size <= 4 {
			t.value = fr.decodeInline(t)
			continue
		}

		// Out of line value. Decode from the read-ahead buffer when it
		// landed inside it, otherwise defer.
		start := int64(t.offset) - int64(offset)
		if start >= 0 && start+int64(size) <= int64(len(buf)) {
			t.value = decodeValues(buf[start:start+int64(size)], t.ftype, t.count, fr.order)
		} else {
			t.deferred = true
		}
	}

	return dir, nil
}

// loadTag reads a deferred tag value from the file.
func (fr *fileReader) loadTag(d *directory, id uint16) error {
	t := d.tag(id)
	if t == nil {
		return fmt.Errorf("tag %d not found", id)
	}
	if t.value != nil || !t.deferred {
		return nil
	}

	size := t.ftype.size() * t.count
	if size <= 4 {
		t.value = fr.decodeInline(t)
		t.deferred = false
		return nil
	}

	if _, err := fr.r.Seek(int64(t.offset), io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to tag %d value: %w", id, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return fmt.Errorf("failed to read tag %d value: %w", id, err)
	}
	t.value = decodeValues(buf, t.ftype, t.count, fr.order)
	t.deferred = false
	return nil
}

// decodeInline decodes a value packed into the 4 byte offset field.
func (fr *fileReader) decodeInline(t *tag) interface{} {
	var raw [4]byte
	fr.order.PutUint32(raw[:], t.offset)
	// The offset field always holds the value in file byte order packed
	// from its start, so re-encoding through the same order is exact.
	size := t.ftype.size() * t.count
	if size > 4 {
		size = 4
	}
	return decodeValues(raw[:size], t.ftype, t.count, fr.order)
}

// decodeValues decodes a raw tag payload into a typed scalar or slice.
func decodeValues(raw []byte, ftype fieldType, count uint32, order binary.ByteOrder) interface{} {
	n := int(count)
	switch ftype {
	case typeByte, typeUndefined:
		values := make([]uint8, n)
		copy(values, raw)
		if n == 1 {
			return values[0]
		}
		return values
	case typeSByte:
		values := make([]int8, n)
		for i := 0; i < n && i < len(raw); i++ {
			values[i] = int8(raw[i])
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeASCII:
		s := raw
		if len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return string(s)
	case typeShort:
		values := make([]uint16, n)
		for i := 0; i < n && i*2+2 <= len(raw); i++ {
			values[i] = order.Uint16(raw[i*2:])
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeSShort:
		values := make([]int16, n)
		for i := 0; i < n && i*2+2 <= len(raw); i++ {
			values[i] = int16(order.Uint16(raw[i*2:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeLong:
		values := make([]uint32, n)
		for i := 0; i < n && i*4+4 <= len(raw); i++ {
			values[i] = order.Uint32(raw[i*4:])
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeSLong:
		values := make([]int32, n)
		for i := 0; i < n && i*4+4 <= len(raw); i++ {
			values[i] = int32(order.Uint32(raw[i*4:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeFloat:
		values := make([]float32, n)
		for i := 0; i < n && i*4+4 <= len(raw); i++ {
			values[i] = math.Float32frombits(order.Uint32(raw[i*4:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeDouble:
		values := make([]float64, n)
		for i := 0; i < n && i*8+8 <= len(raw); i++ {
			values[i] = math.Float64frombits(order.Uint64(raw[i*8:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeRational:
		values := make([][2]uint32, n)
		for i := 0; i < n && i*8+8 <= len(raw); i++ {
			values[i][0] = order.Uint32(raw[i*8:])
			values[i][1] = order.Uint32(raw[i*8+4:])
		}
		if n == 1 {
			return values[0]
		}
		return values
	case typeSRational:
		values := make([][2]int32, n)
		for i := 0; i < n && i*8+8 <= len(raw); i++ {
			values[i][0] = int32(order.Uint32(raw[i*8:]))
			values[i][1] = int32(order.Uint32(raw[i*8+4:]))
		}
		if n == 1 {
			return values[0]
		}
		return values
	default:
		return nil
	}
}

// directoryCount returns the number of IFDs, main image plus overviews.
func (fr *fileReader) directoryCount() int {
	return len(fr.dirs)
}

// directoryAt returns the IFD at index, 0 being the main image.
func (fr *fileReader) directoryAt(index int) *directory {
	if index < 0 || index >= len(fr.dirs) {
		return nil
	}
	return fr.dirs[index]
}
