package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/P-U-C/b1e55ed/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Record_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	ctx := audit.WithActor(context.Background(), "node-7")
	err := logger.Record(ctx, audit.EventAccess, "login", "/api/v1/auth", nil)
	require.NoError(t, err)

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "AUDIT: "))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(output, "AUDIT: "))

	var event audit.Event
	err = json.Unmarshal([]byte(jsonPart), &event)
	require.NoError(t, err)

	assert.Equal(t, audit.EventAccess, event.Type)
	assert.Equal(t, "login", event.Action)
	assert.Equal(t, "/api/v1/auth", event.Resource)
	assert.Equal(t, "node-7", event.ActorID)
	assert.NotEmpty(t, event.ID)
	assert.Len(t, event.ID, 36)
}

func TestLogger_Record_DefaultsToSystemActor(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.Record(context.Background(), audit.EventSystem, "boot", "node", nil)
	require.NoError(t, err)

	jsonPart := strings.TrimSpace(strings.TrimPrefix(buf.String(), "AUDIT: "))
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))
	assert.Equal(t, "system", event.ActorID)
}

func TestLogger_Record_WithMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	meta := map[string]interface{}{"ip": "10.0.0.1", "user_agent": "test"}
	err := logger.Record(context.Background(), audit.EventMutation, "deploy", "/clusters/prod", meta)
	require.NoError(t, err)

	jsonPart := strings.TrimPrefix(buf.String(), "AUDIT: ")
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(jsonPart)), &event))

	assert.Equal(t, "10.0.0.1", event.Metadata["ip"])
}

// memQuerier is a trivial in-memory Querier stand-in for testing Exporter.
type memQuerier struct {
	events []audit.Event
	err    error
}

func (m *memQuerier) QueryAuditEvents(ctx context.Context, actor string, start, end time.Time) ([]audit.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

func TestExporter_GeneratePack_Success(t *testing.T) {
	q := &memQuerier{events: []audit.Event{{ID: "evt-1", ActorID: "node-7", Type: audit.EventAccess}}}
	exporter := audit.NewExporter(q)
	req := audit.ExportRequest{
		Actor:     "node-7",
		StartTime: time.Now().Add(-24 * time.Hour),
		EndTime:   time.Now(),
	}

	zipBytes, checksum, err := exporter.GeneratePack(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, zipBytes)
	assert.Len(t, checksum, 64) // sha256 hex
}

func TestExporter_GeneratePack_EmptyActor(t *testing.T) {
	exporter := audit.NewExporter(&memQuerier{})
	req := audit.ExportRequest{Actor: ""}

	_, _, err := exporter.GeneratePack(context.Background(), req)
	assert.ErrorIs(t, err, audit.ErrEmptyActor)
}

func TestExporter_GeneratePack_InvalidTimeRange(t *testing.T) {
	exporter := audit.NewExporter(&memQuerier{})
	req := audit.ExportRequest{
		Actor:     "node-7",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(-1 * time.Hour),
	}

	_, _, err := exporter.GeneratePack(context.Background(), req)
	assert.ErrorIs(t, err, audit.ErrInvalidTimeRange)
}

func TestExporter_GeneratePack_FailClosedWithoutQuerier(t *testing.T) {
	exporter := audit.NewExporter(nil)
	req := audit.ExportRequest{Actor: "node-7"}

	_, _, err := exporter.GeneratePack(context.Background(), req)
	assert.ErrorIs(t, err, audit.ErrQuerierNotConfigured)
}
