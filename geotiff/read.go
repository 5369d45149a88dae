package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"runtime"
	"sync"

	"github.com/klauspost/compress/flate"
	"golang.org/x/image/tiff/lzw"
)

// readRegion reads a rectangle of raw pixel bytes from one IFD. The
// result is band interleaved, width*height*bands samples in the file's
// sample type.
func (s *Source) readRegion(level, x, y, width, height int) ([]byte, error) {
	d := s.fr.directoryAt(level)
	m := s.levels[level]
	if d == nil || m == nil {
		return nil, fmt.Errorf("overview level %d not found", level)
	}
	if m.tiled {
		return s.readTiledRegion(d, m, x, y, width, height)
	}
	return s.readStrippedRegion(d, m, x, y, width, height)
}

// chunkLocation finds the file extent of strip or tile index i, lazy
// loading the offset arrays on first use.
func (s *Source) chunkLocation(d *directory, offsetTag, countTag uint16, i int) (uint32, uint32, error) {
	for _, id := range [2]uint16{offsetTag, countTag} {
		if t := d.tag(id); t != nil && t.deferred {
			if err := s.fr.loadTag(d, id); err != nil {
				return 0, 0, err
			}
		}
	}
	offsets := d.tag(offsetTag).uint32s()
	counts := d.tag(countTag).uint32s()
	if i >= len(offsets) || i >= len(counts) {
		return 0, 0, fmt.Errorf("chunk %d beyond offset array", i)
	}
	return offsets[i], counts[i], nil
}

// readChunk reads size bytes at offset into a pooled buffer.
func (s *Source) readChunk(offset, size uint32) ([]byte, error) {
	buf := getBuffer(int(size))
	if _, err := s.r.Seek(int64(offset), io.SeekStart); err != nil {
		putBuffer(buf)
		return nil, fmt.Errorf("failed to seek to chunk: %w", err)
	}
	if _, err := io.ReadFull(s.r, buf); err != nil {
		putBuffer(buf)
		return nil, fmt.Errorf("failed to read chunk: %w", err)
	}
	return buf, nil
}

type tileJob struct {
	tileX, tileY int
	index        int
	compressed   []byte
	decoded      []byte
	err          error
}

// readTiledRegion assembles a region from tiles. Compressed tile bytes
// are fetched sequentially, then decompressed across the CPUs.
func (s *Source) readTiledRegion(d *directory, m *metadata, x, y, width, height int) ([]byte, error) {
	tilesPerRow := (m.width + m.tileWidth - 1) / m.tileWidth

	startTileX := x / m.tileWidth
	endTileX := (x + width - 1) / m.tileWidth
	startTileY := y / m.tileHeight
	endTileY := (y + height - 1) / m.tileHeight

	bytesPerPixel := m.bands * m.sample.byteSize()
	output := make([]byte, width*height*bytesPerPixel)

	var jobs []*tileJob
	for tileY := startTileY; tileY <= endTileY; tileY++ {
		for tileX := startTileX; tileX <= endTileX; tileX++ {
			jobs = append(jobs, &tileJob{
				tileX: tileX,
				tileY: tileY,
				index: tileY*tilesPerRow + tileX,
			})
		}
	}

	// I/O first, sequentially. Seeking readers cannot be shared.
	for _, job := range jobs {
		offset, size, err := s.chunkLocation(d, tagTileOffsets, tagTileByteCounts, job.index)
		if err != nil {
			releaseTileJobs(jobs)
			return nil, err
		}
		job.compressed, err = s.readChunk(offset, size)
		if err != nil {
			releaseTileJobs(jobs)
			return nil, err
		}
	}

	if len(jobs) <= 1 || m.compression == compressionNone {
		for _, job := range jobs {
			if err := s.decodeTileJob(job, m, m.tileWidth, m.tileHeight); err != nil {
				releaseTileJobs(jobs)
				return nil, err
			}
			copyTileToOutput(job, m, output, x, y, width, height, bytesPerPixel)
			putBuffer(job.decoded)
		}
		return output, nil
	}

	// Decompression across the CPUs.
	workers := runtime.NumCPU()
	if workers > len(jobs) {
		workers = len(jobs)
	}
	work := make(chan *tileJob, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range work {
				job.err = s.decodeTileJob(job, m, m.tileWidth, m.tileHeight)
			}
		}()
	}
	for _, job := range jobs {
		work <- job
	}
	close(work)
	wg.Wait()

	for _, job := range jobs {
		if job.err != nil {
			releaseTileJobs(jobs)
			return nil, job.err
		}
		copyTileToOutput(job, m, output, x, y, width, height, bytesPerPixel)
		putBuffer(job.decoded)
		job.decoded = nil
	}

	return output, nil
}

// decodeTileJob decompresses one tile and applies the predictor. The
// compressed buffer is returned to the pool.
func (s *Source) decodeTileJob(job *tileJob, m *metadata, chunkWidth, chunkHeight int) error {
	decoded, err := decompress(job.compressed, m, chunkWidth, chunkHeight)
	putBuffer(job.compressed)
	job.compressed = nil
	if err != nil {
		return err
	}
	if m.predictor == 2 {
		if err := undoHorizontalPredictor(decoded, m, s.fr.order, chunkWidth, chunkHeight); err != nil {
			putBuffer(decoded)
			return err
		}
	}
	job.decoded = decoded
	return nil
}

func releaseTileJobs(jobs []*tileJob) {
	for _, job := range jobs {
		if job.compressed != nil {
			putBuffer(job.compressed)
		}
		if job.decoded != nil {
			putBuffer(job.decoded)
		}
	}
}

// copyTileToOutput copies the intersection of a decoded tile with the
// requested region into the output buffer.
func copyTileToOutput(job *tileJob, m *metadata, output []byte, x, y, width, height, bytesPerPixel int) {
	tileStartX := job.tileX * m.tileWidth
	tileStartY := job.tileY * m.tileHeight

	copyStartX := max(x, tileStartX)
	copyStartY := max(y, tileStartY)
	copyEndX := min(x+width, tileStartX+m.tileWidth)
	copyEndY := min(y+height, tileStartY+m.tileHeight)
	if copyStartX >= copyEndX || copyStartY >= copyEndY {
		return
	}

	rowBytes := (copyEndX - copyStartX) * bytesPerPixel
	for row := copyStartY; row < copyEndY; row++ {
		src := ((row-tileStartY)*m.tileWidth + (copyStartX - tileStartX)) * bytesPerPixel
		dst := ((row-y)*width + (copyStartX - x)) * bytesPerPixel
		if src+rowBytes > len(job.decoded) || dst+rowBytes > len(output) {
			break
		}
		copy(output[dst:dst+rowBytes], job.decoded[src:src+rowBytes])
	}
}

// readStrippedRegion assembles a region from strips, decompressing each
// needed strip once.
func (s *Source) readStrippedRegion(d *directory, m *metadata, x, y, width, height int) ([]byte, error) {
	bytesPerPixel := m.bands * m.sample.byteSize()
	bytesPerRow := m.width * bytesPerPixel
	output := make([]byte, width*height*bytesPerPixel)

	startStrip := y / m.rowsPerStrip
	endStrip := (y + height - 1) / m.rowsPerStrip

	for stripIndex := startStrip; stripIndex <= endStrip; stripIndex++ {
		offset, size, err := s.chunkLocation(d, tagStripOffsets, tagStripByteCounts, stripIndex)
		if err != nil {
			return nil, err
		}
		compressed, err := s.readChunk(offset, size)
		if err != nil {
			return nil, err
		}

		stripStartRow := stripIndex * m.rowsPerStrip
		stripRows := min(m.rowsPerStrip, m.height-stripStartRow)
		decoded, err := decompress(compressed, m, m.width, stripRows)
		putBuffer(compressed)
		if err != nil {
			return nil, err
		}
		if m.predictor == 2 {
			if err := undoHorizontalPredictor(decoded, m, s.fr.order, m.width, stripRows); err != nil {
				putBuffer(decoded)
				return nil, err
			}
		}

		firstRow := max(y, stripStartRow)
		lastRow := min(y+height, stripStartRow+stripRows)
		for row := firstRow; row < lastRow; row++ {
			src := (row-stripStartRow)*bytesPerRow + x*bytesPerPixel
			dst := (row - y) * width * bytesPerPixel
			if src+width*bytesPerPixel <= len(decoded) && dst+width*bytesPerPixel <= len(output) {
				copy(output[dst:dst+width*bytesPerPixel], decoded[src:src+width*bytesPerPixel])
			}
		}
		putBuffer(decoded)
	}

	return output, nil
}

// decompress expands one tile or strip into raw sample bytes. The
// result is a pooled buffer of exactly chunkWidth*chunkHeight pixels.
func decompress(data []byte, m *metadata, chunkWidth, chunkHeight int) ([]byte, error) {
	expected := chunkWidth * chunkHeight * m.bands * m.sample.byteSize()

	switch m.compression {
	case compressionNone:
		out := getBuffer(expected)
		n := copy(out, data)
		for i := n; i < expected; i++ {
			out[i] = 0
		}
		return out, nil

	case compressionLZW:
		// TIFF LZW uses MSB bit order.
		r := lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
		defer r.Close()
		out := getBuffer(expected)
		if _, err := io.ReadFull(r, out); err != nil {
			putBuffer(out)
			return nil, fmt.Errorf("failed to decompress LZW chunk: %w", err)
		}
		return out, nil

	case compressionDeflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		out := getBuffer(expected)
		if _, err := io.ReadFull(r, out); err != nil {
			putBuffer(out)
			return nil, fmt.Errorf("failed to decompress deflate chunk: %w", err)
		}
		return out, nil

	case compressionJPEG:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG chunk: %w", err)
		}
		return flattenJPEG(img, m, chunkWidth, chunkHeight, expected)

	default:
		return nil, fmt.Errorf("unsupported compression type: %d", m.compression)
	}
}

// flattenJPEG converts a decoded JPEG image into band interleaved bytes.
// JPEG in TIFF is always 8 bit.
func flattenJPEG(img image.Image, m *metadata, chunkWidth, chunkHeight, expected int) ([]byte, error) {
	if m.sample.byteSize() != 1 {
		return nil, fmt.Errorf("JPEG compression requires 8 bit samples")
	}
	out := getBuffer(expected)
	for i := range out {
		out[i] = 0
	}
	bounds := img.Bounds()
	width := min(bounds.Dx(), chunkWidth)
	height := min(bounds.Dy(), chunkHeight)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				offset := (y*chunkWidth + x) * m.bands
				gray := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
				for b := 0; b < m.bands; b++ {
					out[offset+b] = gray
				}
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				offset := (y*chunkWidth + x) * m.bands
				channels := [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
				for i := 0; i < m.bands && i < 4; i++ {
					out[offset+i] = channels[i]
				}
			}
		}
	}
	return out, nil
}

// undoHorizontalPredictor reverses TIFF predictor 2, which stores each
// sample as a difference from the sample to its left.
func undoHorizontalPredictor(data []byte, m *metadata, order binary.ByteOrder, chunkWidth, chunkHeight int) error {
	switch m.sample.byteSize() {
	case 1:
		stride := chunkWidth * m.bands
		for row := 0; row < chunkHeight; row++ {
			base := row * stride
			if base+stride > len(data) {
				break
			}
			for i := base + m.bands; i < base+stride; i++ {
				data[i] += data[i-m.bands]
			}
		}
		return nil
	case 2:
		stride := chunkWidth * m.bands * 2
		for row := 0; row < chunkHeight; row++ {
			base := row * stride
			if base+stride > len(data) {
				break
			}
			for i := base + m.bands*2; i+1 < base+stride; i += 2 {
				prev := order.Uint16(data[i-m.bands*2:])
				order.PutUint16(data[i:], order.Uint16(data[i:])+prev)
			}
		}
		return nil
	default:
		return fmt.Errorf("predictor not supported for %d byte samples", m.sample.byteSize())
	}
}
