package geotiff

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// rangeReadAhead is the default over-read on a cache miss. TIFF access
// patterns are short reads clustered around directories and chunks, so a
// modest read-ahead removes most round trips.
const rangeReadAhead = 64 * 1024

// RangeReader is an io.ReadSeeker over a remote file using HTTP range
// requests, with a read-ahead buffer for clustered access.
type RangeReader struct {
	url    string
	client *fasthttp.Client
	size   int64

	mu          sync.Mutex
	pos         int64
	buffer      []byte
	bufferStart int64
	bufferEnd   int64
	readAhead   int
}

// NewRangeReader creates a reader for the given URL. The file size is
// probed with a HEAD request; when nil a default client is used.
func NewRangeReader(url string, client *fasthttp.Client) *RangeReader {
	if client == nil {
		client = &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
	}
	rr := &RangeReader{
		url:         url,
		client:      client,
		readAhead:   rangeReadAhead,
		bufferStart: -1,
		bufferEnd:   -1,
	}
	rr.size = rr.probeSize()
	return rr
}

// SetReadAhead changes the read-ahead size. Larger values cost memory
// but help sequential scans such as statistics passes.
func (rr *RangeReader) SetReadAhead(size int) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if size > 0 {
		rr.readAhead = size
	}
}

// Size returns the remote file size, or -1 when unknown.
func (rr *RangeReader) Size() int64 {
	return rr.size
}

func (rr *RangeReader) probeSize() int64 {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodHead)

	if err := rr.client.Do(req, resp); err != nil {
		return -1
	}
	if n := resp.Header.ContentLength(); n > 0 {
		return int64(n)
	}
	return -1
}

// Read reads from the current position, serving from the read-ahead
// buffer when it covers the request.
func (rr *RangeReader) Read(p []byte) (int, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.size > 0 && rr.pos >= rr.size {
		return 0, io.EOF
	}

	toRead := len(p)
	if rr.size > 0 && rr.pos+int64(toRead) > rr.size {
		toRead = int(rr.size - rr.pos)
	}

	if rr.buffer != nil && rr.pos >= rr.bufferStart && rr.pos < rr.bufferEnd {
		start := int(rr.pos - rr.bufferStart)
		available := int(rr.bufferEnd - rr.pos)
		if available >= toRead {
			n := copy(p[:toRead], rr.buffer[start:start+toRead])
			rr.pos += int64(n)
			return n, nil
		}
		n := copy(p[:available], rr.buffer[start:])
		rr.pos += int64(n)
		nn, err := rr.fill(p[n:toRead], toRead-n)
		return n + nn, err
	}

	return rr.fill(p[:toRead], toRead)
}

// fill fetches at least toRead bytes at the current position, keeping
// any over-read in the buffer.
func (rr *RangeReader) fill(p []byte, toRead int) (int, error) {
	fetch := rr.readAhead
	if fetch < toRead {
		fetch = toRead
	}
	if rr.size > 0 && rr.pos+int64(fetch) > rr.size {
		fetch = int(rr.size - rr.pos)
	}

	data, err := rr.fetchRange(rr.pos, rr.pos+int64(fetch)-1)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}

	if len(data) > toRead {
		if cap(rr.buffer) >= len(data) {
			rr.buffer = rr.buffer[:len(data)]
		} else {
			rr.buffer = make([]byte, len(data))
		}
		copy(rr.buffer, data)
		rr.bufferStart = rr.pos
		rr.bufferEnd = rr.pos + int64(len(data))
	}

	if len(data) < toRead {
		toRead = len(data)
	}
	n := copy(p[:toRead], data[:toRead])
	rr.pos += int64(n)
	return n, nil
}

// fetchRange requests one byte range from the server.
func (rr *RangeReader) fetchRange(start, end int64) ([]byte, error) {
	if rr.size > 0 && end >= rr.size {
		end = rr.size - 1
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	if err := rr.client.Do(req, resp); err != nil {
		return nil, err
	}
	status := resp.StatusCode()
	if status != fasthttp.StatusPartialContent && status != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}

	// Body is released with the response, take a copy.
	body := resp.Body()
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// Seek sets the position of the next Read. Seeking outside the buffered
// range drops the read-ahead buffer.
func (rr *RangeReader) Seek(offset int64, whence int) (int64, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = rr.pos + offset
	case io.SeekEnd:
		if rr.size < 0 {
			return 0, fmt.Errorf("cannot seek from end: file size unknown")
		}
		pos = rr.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position: %d", pos)
	}

	if rr.buffer != nil && (pos < rr.bufferStart || pos >= rr.bufferEnd) {
		rr.bufferStart = -1
		rr.bufferEnd = -1
	}

	rr.pos = pos
	return pos, nil
}
