package archive

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/waybacker/internal/core/model"
)

// newArchiveServer serves both the availability API and the snapshot pages
// it points at, the way web.archive.org does.
func newArchiveServer(t *testing.T, snapshotTimestamp, body string) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/available":
			require.NotEmpty(t, r.URL.Query().Get("url"))
			require.Len(t, r.URL.Query().Get("timestamp"), 14)
			fmt.Fprintf(w, `{"archived_snapshots":{"closest":{"url":"%s/web/%s/http://example.com/","timestamp":"%s","status":"200","available":true}}}`,
				server.URL, snapshotTimestamp, snapshotTimestamp)
		default:
			fmt.Fprint(w, body)
		}
	}))
	return server
}

func TestClient_Fetch(t *testing.T) {
	server := newArchiveServer(t, "20180107230000", "<html>archived page</html>")
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL + "/available"))
	at := time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC)

	result := client.Fetch(context.Background(), "example.com", at)

	assert.Equal(t, model.StatusOK, result.Status)
	assert.Equal(t, "example.com", result.URL)
	assert.Equal(t, "2018-01-08T00:00:00Z", result.RequestedTimestamp)
	assert.Equal(t, "2018-01-07T23:00:00Z", result.SnapshotTimestamp)
	assert.Contains(t, result.SnapshotURL, "/web/20180107230000/")
	assert.Equal(t, float64(3600), result.OffsetSeconds)
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, "<html>archived page</html>", result.Content)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.RetrievedAt)
}

func TestClient_Fetch_MetadataOnly(t *testing.T) {
	server := newArchiveServer(t, "20180108000000", "<html>should not be fetched</html>")
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL+"/available"), WithContent(false))
	at := time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC)

	result := client.Fetch(context.Background(), "example.com", at)

	assert.Equal(t, model.StatusOK, result.Status)
	assert.Empty(t, result.Content)
	assert.Equal(t, 200, result.StatusCode, "status code comes from the lookup metadata")
	assert.Equal(t, float64(0), result.OffsetSeconds)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "empty archived_snapshots",
			body: `{"url":"example.com","archived_snapshots":{}}`,
		},
		{
			name: "closest not available",
			body: `{"archived_snapshots":{"closest":{"url":"","timestamp":"","status":"","available":false}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(WithEndpoint(server.URL))
			result := client.Fetch(context.Background(), "example.com", time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC))

			assert.Equal(t, model.StatusNotFound, result.Status)
			assert.Empty(t, result.Error, "not found is not an error")
			assert.Empty(t, result.SnapshotURL)
		})
	}
}

func TestClient_Fetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"archived_snapshots":{}}`)
	}))
	defer server.Close()

	client := NewClient(
		WithEndpoint(server.URL),
		WithBackoffInterval(time.Millisecond),
	)
	result := client.Fetch(context.Background(), "example.com", time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, model.StatusNotFound, result.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_ExhaustedRetriesYieldErrorResult(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(
		WithEndpoint(server.URL),
		WithMaxRetries(2),
		WithBackoffInterval(time.Millisecond),
	)
	at := time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC)
	result := client.Fetch(context.Background(), "example.com", at)

	assert.Equal(t, model.StatusError, result.Status)
	assert.Contains(t, result.Error, "503")
	assert.Equal(t, "2018-01-08T00:00:00Z", result.RequestedTimestamp)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestClient_Fetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(
		WithEndpoint(server.URL),
		WithBackoffInterval(time.Millisecond),
	)
	result := client.Fetch(context.Background(), "example.com", time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, model.StatusError, result.Status)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses are not retried")
}

func TestClient_Fetch_UnreachableHost(t *testing.T) {
	// A closed port: transport errors are retried then folded into the record.
	client := NewClient(
		WithEndpoint("http://127.0.0.1:1/available"),
		WithMaxRetries(1),
		WithBackoffInterval(time.Millisecond),
	)
	result := client.Fetch(context.Background(), "example.com", time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, model.StatusError, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestClient_Fetch_ContentFetchFailure(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/available" {
			fmt.Fprintf(w, `{"archived_snapshots":{"closest":{"url":"%s/web/20180108000000/http://example.com/","timestamp":"20180108000000","status":"200","available":true}}}`, server.URL)
			return
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	client := NewClient(
		WithEndpoint(server.URL+"/available"),
		WithBackoffInterval(time.Millisecond),
	)
	result := client.Fetch(context.Background(), "example.com", time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, model.StatusError, result.Status)
	assert.Contains(t, result.Error, "snapshot content fetch failed")
	assert.NotEmpty(t, result.SnapshotURL, "lookup metadata survives a content failure")
}

func TestClient_Fetch_CancelledContext(t *testing.T) {
	server := newArchiveServer(t, "20180108000000", "<html></html>")
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithEndpoint(server.URL + "/available"))
	result := client.Fetch(ctx, "example.com", time.Date(2018, 1, 8, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, model.StatusError, result.Status)
}
