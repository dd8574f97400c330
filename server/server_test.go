package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/capture"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/extract"
	"github.com/teranos/jobtrail/jobs"
	"github.com/teranos/jobtrail/source"
	"github.com/teranos/jobtrail/stats"
)

// fakeCapturer stores a fixed record keyed by the input, or fails with err.
// A non-nil gate holds every capture until it is closed.
type fakeCapturer struct {
	store *jobs.Store
	err   error
	gate  chan struct{}

	mu   sync.Mutex
	seen []source.Input
}

func (f *fakeCapturer) inputs() []source.Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]source.Input(nil), f.seen...)
}

func (f *fakeCapturer) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeCapturer) Capture(ctx context.Context, in source.Input) (*capture.Result, error) {
	f.mu.Lock()
	f.seen = append(f.seen, in)
	failure := f.err
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if failure != nil {
		return nil, failure
	}
	rec, created, err := f.store.Add(ctx, jobs.NewRecord{
		SourceType: jobs.SourceText,
		SourceKey:  source.ContentKey(in.Value),
		Source:     source.DirectInputOrigin,
		Title:      "Data Engineer",
		Company:    "Globex",
	})
	if err != nil {
		return nil, err
	}
	return &capture.Result{Record: rec, Created: created, Outcome: extract.OutcomeStrict}, nil
}

type testServer struct {
	srv      *JobServer
	store    *jobs.Store
	capturer *fakeCapturer
	http     *httptest.Server
}

func newTestServer(t *testing.T, cfg am.ServerConfig) *testServer {
	t.Helper()
	store, err := jobs.Open(filepath.Join(t.TempDir(), "jobs.json"), jobs.Options{})
	require.NoError(t, err)

	capturer := &fakeCapturer{store: store}
	srv, err := NewJobServer(store, capturer, cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return &testServer{srv: srv, store: store, capturer: capturer, http: ts}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (ts *testServer) addJob(t *testing.T, key string) *jobs.Record {
	t.Helper()
	rec, _, err := ts.store.Add(context.Background(), jobs.NewRecord{SourceType: jobs.SourceURL, SourceKey: key, Source: key})
	require.NoError(t, err)
	return rec
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})

	resp, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "ok", health.Status)

	resp, _ = ts.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleCapture(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	input := "Data Engineer at Globex, remote, 110k."

	resp, body := ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: input})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var first capture.Result
	require.NoError(t, json.Unmarshal(body, &first))
	assert.True(t, first.Created)
	assert.Equal(t, "Data Engineer", first.Record.Title)
	assert.Equal(t, source.KindText, ts.capturer.inputs()[0].Kind)

	resp, body = ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: input, Kind: "text"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "re-capture updates the existing record")

	var second capture.Result
	require.NoError(t, json.Unmarshal(body, &second))
	assert.False(t, second.Created)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, source.KindText, ts.capturer.inputs()[1].Kind)
}

func TestHandleCapture_ConcurrentSameInputRunsOnce(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	gate := make(chan struct{})
	ts.capturer.mu.Lock()
	ts.capturer.gate = gate
	ts.capturer.mu.Unlock()

	body, err := json.Marshal(CaptureRequest{Input: "Data Engineer at Globex, remote, 110k."})
	require.NoError(t, err)

	codes := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := http.Post(ts.http.URL+"/api/jobs", "application/json", bytes.NewReader(body))
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}

	require.Eventually(t, func() bool { return len(ts.capturer.inputs()) == 1 },
		2*time.Second, 10*time.Millisecond)
	// Give the second request time to join the in-flight capture
	time.Sleep(200 * time.Millisecond)
	close(gate)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusCreated, <-codes)
	}
	assert.Len(t, ts.capturer.inputs(), 1)
}

func TestHandleCapture_BadRequests(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})

	resp, _ := ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: "x", Kind: "docx"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+"/api/jobs", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	assert.Empty(t, ts.capturer.inputs())
}

func TestHandleCapture_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"fetch", errors.Wrap(errors.ErrFetch, "GET: status 404"), http.StatusBadGateway},
		{"model down", errors.Wrap(errors.ErrModelUnavailable, "refused"), http.StatusBadGateway},
		{"model timeout", errors.Wrap(errors.ErrModelTimeout, "120s"), http.StatusGatewayTimeout},
		{"garbage", errors.Wrap(errors.ErrExtractionParse, "no JSON"), http.StatusUnprocessableEntity},
		{"pdf", errors.Wrap(errors.ErrParse, "encrypted"), http.StatusBadRequest},
		{"disk", errors.Wrap(errors.ErrStorageUnwritable, "read-only"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, am.ServerConfig{})
			ts.capturer.fail(tt.err)

			resp, body := ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: "posting"})
			assert.Equal(t, tt.status, resp.StatusCode)

			var er ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.NotEmpty(t, er.Error)
			assert.Equal(t, errors.ClassOf(tt.err), errors.Class(er.Class))
		})
	}
}

func TestHandleCapture_ErrorHints(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	ts.capturer.fail(errors.WithHint(errors.Wrap(errors.ErrModelUnavailable, "refused"), "start ollama"))

	_, body := ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: "posting"})

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, []string{"start ollama"}, er.Hints)
}

func TestHandleCapture_RateLimited(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{CapturesPerMinute: 1})

	resp, _ := ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: "first posting"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/jobs", CaptureRequest{Input: "second posting"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Len(t, ts.capturer.inputs(), 1)

	// Reads are never limited
	resp, _ = ts.do(t, http.MethodGet, "/api/jobs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleJobs_List(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	a := ts.addJob(t, "https://a.example/1")
	ts.addJob(t, "https://b.example/2")
	_, err := ts.store.UpdateStatus(context.Background(), a.ID, jobs.StatusApplied, "")
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var all JobsResponse
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Equal(t, 2, all.Total)

	resp, body = ts.do(t, http.MethodGet, "/api/jobs?status=applied", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var applied JobsResponse
	require.NoError(t, json.Unmarshal(body, &applied))
	require.Equal(t, 1, applied.Total)
	assert.Equal(t, a.ID, applied.Jobs[0].ID)

	resp, _ = ts.do(t, http.MethodGet, "/api/jobs?status=ghosted", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleJob(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	rec := ts.addJob(t, "https://a.example/1")

	for _, ref := range []string{rec.ID, rec.ID[:8], "1"} {
		resp, body := ts.do(t, http.MethodGet, "/api/jobs/"+ref, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, ref)
		var got jobs.Record
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, rec.ID, got.ID)
	}

	resp, _ := ts.do(t, http.MethodGet, "/api/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/jobs/"+rec.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/jobs/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleJobStatus(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	rec := ts.addJob(t, "https://a.example/1")
	path := "/api/jobs/" + rec.ID + "/status"

	resp, body := ts.do(t, http.MethodPost, path, StatusRequest{Status: "applied", Note: "via referral"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated jobs.Record
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, jobs.StatusApplied, updated.Status)
	require.Len(t, updated.Notes, 1)

	resp, body = ts.do(t, http.MethodPost, path, StatusRequest{Status: "Hired"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, "caller", er.Class)
	require.NotEmpty(t, er.Hints)
	assert.Contains(t, er.Hints[0], "Interviewing, Withdrawn")

	resp, _ = ts.do(t, http.MethodPost, path, StatusRequest{Status: "ghosted"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/jobs/missing-id/status", StatusRequest{Status: "Applied"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleJobNotes(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	rec := ts.addJob(t, "https://a.example/1")

	resp, body := ts.do(t, http.MethodPost, "/api/jobs/"+rec.ID+"/notes", NoteRequest{Text: "recruiter called"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated jobs.Record
	require.NoError(t, json.Unmarshal(body, &updated))
	require.Len(t, updated.Notes, 1)
	assert.Equal(t, "recruiter called", updated.Notes[0].Text)

	resp, _ = ts.do(t, http.MethodPost, "/api/jobs/"+rec.ID+"/notes", NoteRequest{Text: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStats(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})
	a := ts.addJob(t, "https://a.example/1")
	ts.addJob(t, "https://b.example/2")
	_, err := ts.store.UpdateStatus(context.Background(), a.ID, jobs.StatusApplied, "")
	require.NoError(t, err)

	resp, body := ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st stats.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.StatusCounts[jobs.StatusSaved])
	assert.Equal(t, 0, st.StatusCounts[jobs.StatusHired])
	assert.Equal(t, 1, st.Edge(jobs.StatusSaved, jobs.StatusApplied))
	require.Len(t, st.Sankey.Links, 1)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{AllowedOrigins: []string{"http://localhost"}})

	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocket_StoreChanged(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{})

	wsURL := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello StoreChangedMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "store_changed", hello.Type)
	assert.Equal(t, 0, hello.Total)

	ts.addJob(t, "https://a.example/1")

	var changed StoreChangedMessage
	require.NoError(t, conn.ReadJSON(&changed))
	assert.Equal(t, "store_changed", changed.Type)
	assert.Equal(t, 1, changed.Total)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	ts := newTestServer(t, am.ServerConfig{AllowedOrigins: []string{"http://localhost"}})

	wsURL := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusForError(errors.NewNotFoundError("job x")))
	assert.Equal(t, http.StatusBadRequest, statusForError(errors.NewValidationError("empty")))
	assert.Equal(t, http.StatusConflict, statusForError(errors.Wrap(errors.ErrInvalidTransition, "Saved -> Hired")))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}
