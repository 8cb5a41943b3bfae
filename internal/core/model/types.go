package model

import "time"

// SnapshotStatus marks how a single lookup concluded.
type SnapshotStatus string

const (
	// StatusOK means the archive returned a snapshot for the requested time.
	StatusOK SnapshotStatus = "ok"
	// StatusNotFound means the archive holds no snapshot near the requested time.
	StatusNotFound SnapshotStatus = "not_found"
	// StatusError means the lookup failed after exhausting retries.
	StatusError SnapshotStatus = "error"
)

// WaybackTimestampLayout is the 14-digit timestamp format used in
// web.archive.org snapshot URLs and API parameters.
const WaybackTimestampLayout = "20060102150405"

// SnapshotResult is one line of the result file: the outcome of a single
// nearest-snapshot lookup for a URL at a requested timestamp. Immutable once
// produced; the writer appends it verbatim.
type SnapshotResult struct {
	URL                string         `json:"url"`
	RequestedTimestamp string         `json:"requested_timestamp"`
	SnapshotURL        string         `json:"snapshot_url,omitempty"`
	SnapshotTimestamp  string         `json:"snapshot_timestamp,omitempty"`
	OffsetSeconds      float64        `json:"offset_seconds,omitempty"`
	StatusCode         int            `json:"status_code,omitempty"`
	Status             SnapshotStatus `json:"status"`
	Error              string         `json:"error,omitempty"`
	Content            string         `json:"content,omitempty"`
	ElapsedSeconds     float64        `json:"elapsed_seconds"`
	RetrievedAt        string         `json:"retrieved_at"`
}

// FormatRequested renders a requested timestamp the way every record and
// resume lookup keys it.
func FormatRequested(t time.Time) string {
	return t.Format(time.RFC3339)
}

// NewErrorResult builds the recovered-failure record for a timestamp whose
// lookup exhausted its retry budget.
func NewErrorResult(url string, requested time.Time, errMsg string, elapsed time.Duration) *SnapshotResult {
	return &SnapshotResult{
		URL:                url,
		RequestedTimestamp: FormatRequested(requested),
		Status:             StatusError,
		Error:              errMsg,
		ElapsedSeconds:     elapsed.Seconds(),
		RetrievedAt:        time.Now().Format(time.RFC3339),
	}
}

// NewNotFoundResult builds the record for a timestamp the archive has no
// snapshot for. Distinct from an error: the lookup itself succeeded.
func NewNotFoundResult(url string, requested time.Time, elapsed time.Duration) *SnapshotResult {
	return &SnapshotResult{
		URL:                url,
		RequestedTimestamp: FormatRequested(requested),
		Status:             StatusNotFound,
		ElapsedSeconds:     elapsed.Seconds(),
		RetrievedAt:        time.Now().Format(time.RFC3339),
	}
}
