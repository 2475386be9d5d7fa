package utils

import (
	"testing"

	"github.com/valyala/bytebufferpool"
)

func TestBuildString(t *testing.T) {
	got := BuildString(func(buf *bytebufferpool.ByteBuffer) {
		buf.WriteString("heart rate: ")
		buf.WriteString("72")
	})
	if got != "heart rate: 72" {
		t.Fatalf("got %q", got)
	}

	// Reused buffers start empty
	if again := BuildString(func(*bytebufferpool.ByteBuffer) {}); again != "" {
		t.Fatalf("pooled buffer not reset: %q", again)
	}
}
