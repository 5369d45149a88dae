package geotiff

import "sync"

// Chunk buffers churn fast while panning, so they are pooled in a few
// size classes instead of allocated per read.

const (
	smallBufferSize  = 64 * 1024
	mediumBufferSize = 256 * 1024
	largeBufferSize  = 1024 * 1024
	xlargeBufferSize = 4 * 1024 * 1024
)

var bufferPools = [4]sync.Pool{
	{New: func() interface{} { b := make([]byte, smallBufferSize); return &b }},
	{New: func() interface{} { b := make([]byte, mediumBufferSize); return &b }},
	{New: func() interface{} { b := make([]byte, largeBufferSize); return &b }},
	{New: func() interface{} { b := make([]byte, xlargeBufferSize); return &b }},
}

func poolIndex(size int) int {
	switch {
	case size <= smallBufferSize:
		return 0
	case size <= mediumBufferSize:
		return 1
	case size <= largeBufferSize:
		return 2
	case size <= xlargeBufferSize:
		return 3
	default:
		return -1
	}
}

// getBuffer returns a byte slice of exactly the requested length, backed
// by a pooled array when the size fits a class. Contents are undefined.
func getBuffer(size int) []byte {
	idx := poolIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	buf := bufferPools[idx].Get().(*[]byte)
	return (*buf)[:size]
}

// putBuffer returns a buffer obtained from getBuffer to its pool. The
// buffer must not be used afterwards.
func putBuffer(buf []byte) {
	c := cap(buf)
	full := buf[:c]
	switch c {
	case smallBufferSize:
		bufferPools[0].Put(&full)
	case mediumBufferSize:
		bufferPools[1].Put(&full)
	case largeBufferSize:
		bufferPools[2].Put(&full)
	case xlargeBufferSize:
		bufferPools[3].Put(&full)
	}
}
