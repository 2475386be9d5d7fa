package utils

import (
	"github.com/valyala/bytebufferpool"
)

// Text buffers are calibrated per size class by bytebufferpool, so prompts of
// similar length reuse similarly sized buffers.
var textPool bytebufferpool.Pool

// GetBuffer returns an empty buffer from the shared pool
func GetBuffer() *bytebufferpool.ByteBuffer {
	return textPool.Get()
}

// PutBuffer returns buf to the shared pool. buf must not be used afterwards.
func PutBuffer(buf *bytebufferpool.ByteBuffer) {
	textPool.Put(buf)
}

// BuildString runs fill against a pooled buffer and returns its contents
func BuildString(fill func(buf *bytebufferpool.ByteBuffer)) string {
	buf := GetBuffer()
	defer PutBuffer(buf)
	fill(buf)
	return buf.String()
}
