package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgrid/formgrid/pkg/observability"
)

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(observability.NewLogger(observability.InfoLevel, &buf))

	logger.Record(context.Background(), &Event{
		Type:       EventAccessDenied,
		IdentityID: "user-1",
		ProjectID:  "proj-1",
		EntityType: "form",
		EntityID:   "f1",
		Method:     "update",
		Path:       "/project/proj-1/form/f1",
		Rule:       "default",
		Message:    "request denied",
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request denied", line["msg"])
	assert.Equal(t, "audit", line["component"])
	assert.Equal(t, "access.denied", line["event_type"])
	assert.Equal(t, "user-1", line["identity_id"])
	assert.Equal(t, "proj-1", line["project_id"])
	assert.Equal(t, "default", line["rule"])
}

type countingLogger struct {
	events []*Event
}

func (c *countingLogger) Record(ctx context.Context, event *Event) {
	c.events = append(c.events, event)
}

func TestMultiLogger(t *testing.T) {
	first := &countingLogger{}
	second := &countingLogger{}
	multi := NewMultiLogger(first, second, NopLogger{})

	event := &Event{Type: EventAccessAdminKey, Timestamp: time.Now()}
	multi.Record(context.Background(), event)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Same(t, event, first.events[0])
}
