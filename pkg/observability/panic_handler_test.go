package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	func() {
		defer RecoverPanic(logger, "stats loop")
		panic("boom")
	}()

	line := decodeLine(t, &buf)
	assert.Equal(t, "panic recovered", line["msg"])
	assert.Equal(t, "boom", line["panic"])
	assert.Equal(t, "stats loop", line["operation"])
	assert.Contains(t, line["stack"], "goroutine")
}
