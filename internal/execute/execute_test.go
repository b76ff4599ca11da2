package execute

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/BrandLens/internal/database"
)

const outputArrayPayload = `{
  "id": "resp_1",
  "model": "gpt-4o-mini-2024-07-18",
  "output": [
    {"type": "web_search_call", "id": "ws_1", "status": "completed"},
    {"type": "message", "role": "assistant", "content": [
      {"type": "output_text", "text": "Acme sells anvils. See Acme docs.", "annotations": [
        {"type": "url_citation", "url": "https://acme.com", "title": "Acme", "start_index": 0, "end_index": 18},
        {"type": "url_citation", "url": "https://acme.com", "title": "Acme again", "start_index": 19, "end_index": 33},
        {"type": "file_citation", "file_id": "f1"},
        {"type": "url_citation", "url": "https://reviews.io/acme", "title": "Reviews", "start_index": 500, "end_index": 510}
      ]}
    ]}
  ]
}`

var prompt = database.Prompt{ID: "p1", RunID: "run-1", Question: "Who sells anvils?"}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteSendsWebSearchRequest(t *testing.T) {
	var got responsesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(outputArrayPayload))
	}))
	defer srv.Close()

	e := New(Options{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "gpt-4o-mini", Timeout: time.Second})
	_, err := e.Execute(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "Who sells anvils?", got.Input)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "web_search", got.Tools[0]["type"])
}

func TestExecuteOutputArrayShape(t *testing.T) {
	srv := serve(t, http.StatusOK, outputArrayPayload)
	res, err := New(Options{BaseURL: srv.URL, Model: "m"}).Execute(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, "p1", res.PromptID)
	assert.Equal(t, "Acme sells anvils. See Acme docs.", res.OutputText)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", res.Model)

	require.Len(t, res.Citations, 2, "url citations deduplicated by URL")
	assert.Equal(t, "https://acme.com", res.Citations[0].URL)
	assert.Equal(t, "Acme", res.Citations[0].Title, "first occurrence wins")
	assert.Equal(t, "Acme sells anvils.", res.Citations[0].Snippet)
	assert.Equal(t, "https://reviews.io/acme", res.Citations[1].URL)
	assert.Empty(t, res.Citations[1].Snippet, "out-of-range offsets give no snippet")
}

func TestExecuteShiftsAnnotationsOfLaterParts(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"output":[{"type":"message","content":[
  {"type":"output_text","text":"Ålpha tools are fine.","annotations":[
    {"type":"url_citation","url":"https://alpha.io","title":"Alpha","start_index":0,"end_index":5}]},
  {"type":"output_text","text":"Acme sells widgets.","annotations":[
    {"type":"url_citation","url":"https://acme.com","title":"Shop","start_index":0,"end_index":4}]}
]}]}`)
	res, err := New(Options{BaseURL: srv.URL, Model: "m"}).Execute(context.Background(), prompt)
	require.NoError(t, err)

	assert.Equal(t, "Ålpha tools are fine.\n\nAcme sells widgets.", res.OutputText)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, "Ålpha", res.Citations[0].Snippet)
	assert.Equal(t, "Acme", res.Citations[1].Snippet)
}

func TestExecuteRawArrayShape(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"type":"message","content":[{"type":"output_text","text":"From a raw array."}]}]`)
	res, err := New(Options{BaseURL: srv.URL, Model: "m"}).Execute(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "From a raw array.", res.OutputText)
	assert.Equal(t, "m", res.Model)
	assert.Empty(t, res.Citations)
}

func TestExecuteOutputTextShape(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"output": [], "output_text": "Direct text."}`)
	res, err := New(Options{BaseURL: srv.URL}).Execute(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Direct text.", res.OutputText)
}

func TestExecuteMessageOutputTextShape(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"message": {"output_text": "Nested text."}}`)
	res, err := New(Options{BaseURL: srv.URL}).Execute(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Nested text.", res.OutputText)
}

func TestExecuteEmptyOutput(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"output": [{"type":"message","content":[{"type":"output_text","text":""}]}]}`)
	_, err := New(Options{BaseURL: srv.URL}).Execute(context.Background(), prompt)
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestExecuteNon2xx(t *testing.T) {
	srv := serve(t, http.StatusTooManyRequests, `{"error": {"message": "slow down"}}`)
	_, err := New(Options{BaseURL: srv.URL}).Execute(context.Background(), prompt)
	require.ErrorIs(t, err, ErrProviderStatus)
	assert.Contains(t, err.Error(), "429")
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}).Execute(context.Background(), prompt)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteDebugSkipsNetwork(t *testing.T) {
	e := New(Options{BaseURL: "http://127.0.0.1:1", Debug: true})
	res, err := e.Execute(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, DebugModel, res.Model)
	assert.Len(t, res.Citations, 3)
	assert.NotEmpty(t, res.OutputText)
}

type recordingArchiver struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *recordingArchiver) Put(_ context.Context, key string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return a.err
}

func TestExecuteArchivesRawPayload(t *testing.T) {
	srv := serve(t, http.StatusOK, outputArrayPayload)
	arch := &recordingArchiver{err: errors.New("bucket unavailable")}

	res, err := New(Options{BaseURL: srv.URL, Archiver: arch}).Execute(context.Background(), prompt)
	require.NoError(t, err, "archive failures never fail execution")
	assert.NotNil(t, res)
	assert.Equal(t, []string{"runs/run-1/p1.json"}, arch.keys)
}
