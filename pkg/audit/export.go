package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyActor is returned when the actor filter is empty.
	ErrEmptyActor = errors.New("audit: actor must not be empty")
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("audit: start_time must be before end_time")
	// ErrQuerierNotConfigured is returned when export is invoked without a backing querier.
	ErrQuerierNotConfigured = errors.New("audit: querier not configured (fail-closed)")
)

// ExportRequest defines what to export.
type ExportRequest struct {
	Actor     string    `json:"actor"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Querier retrieves audit events for a given actor and time window. The
// event journal implements this by filtering its append-only log; tests
// can supply an in-memory stand-in.
type Querier interface {
	QueryAuditEvents(ctx context.Context, actor string, start, end time.Time) ([]Event, error)
}

// Exporter builds checksummed evidence packs from the audit trail.
type Exporter struct {
	querier Querier
}

func NewExporter(q Querier) *Exporter {
	return &Exporter{querier: q}
}

// GeneratePack creates a zip file containing the audit events and a manifest with a checksum.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if req.Actor == "" {
		return nil, "", ErrEmptyActor
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if e.querier == nil {
		return nil, "", ErrQuerierNotConfigured
	}

	entries, err := e.querier.QueryAuditEvents(ctx, req.Actor, req.StartTime, req.EndTime)
	if err != nil {
		return nil, "", fmt.Errorf("audit: query failed: %w", err)
	}

	eventsJSON, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, "", err
	}

	manifest := map[string]interface{}{
		"actor":       req.Actor,
		"event_count": len(entries),
		"period": map[string]interface{}{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("audit: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("events.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(eventsJSON)

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(manifestJSON)

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	_, _ = fmt.Fprintf(f, "Evidence pack for actor %s\n", req.Actor)

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	checksum := hex.EncodeToString(hash[:])

	return zipBytes, checksum, nil
}
