package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"lira/internal/protocol"
)

func int64Ptr(v int64) *int64 { return &v }

// newCountingServer returns a test server and a pointer to its request count.
func newCountingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int64) {
	t.Helper()
	var count int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&count, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func TestSubmitDiscovery_ValidationShortCircuits(t *testing.T) {
	srv, count := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the backend")
	})
	client := NewClient(srv.URL, 0)

	_, err := client.SubmitDiscovery(context.Background(), protocol.DiscoveryRequest{Content: "   "})
	require.ErrorIs(t, err, ErrEmptySubmission)
	require.Zero(t, *count, "validation failure must not contact the backend")
}

func TestSubmitVerification_ValidationShortCircuits(t *testing.T) {
	srv, count := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the backend")
	})
	client := NewClient(srv.URL, 0)

	cases := []protocol.VerificationRequest{
		{Entity1: "", Entity2: "Cancer"},
		{Entity1: "Kiwi fruit", Entity2: ""},
		{Entity1: " ", Entity2: " "},
	}
	for _, req := range cases {
		_, err := client.SubmitVerification(context.Background(), req)
		require.ErrorIs(t, err, ErrMissingEntity)
	}
	require.Zero(t, *count)
}

func TestSubmitDiscovery_MultipartFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0600))

	var gotJobID, gotContent string
	var gotFiles []string

	srv, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotJobID = r.FormValue("job_id")
		gotContent = r.FormValue("content")
		for _, fh := range r.MultipartForm.File["files"] {
			gotFiles = append(gotFiles, fh.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id": 6, "workflow_triggered": true}`))
	})

	client := NewClient(srv.URL, 0)
	resp, err := client.SubmitDiscovery(context.Background(), protocol.DiscoveryRequest{
		JobID:   int64Ptr(3),
		Content: "kiwi and cancer",
		Files:   []protocol.Attachment{{Name: "paper.pdf", Path: path}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), resp.JobID)
	require.True(t, resp.WorkflowTriggered)

	require.Equal(t, "3", gotJobID, "continuation job id is forwarded")
	require.Equal(t, "kiwi and cancer", gotContent)
	require.Equal(t, []string{"paper.pdf"}, gotFiles)
}

func TestSubmitDiscovery_OmitsEmptyFields(t *testing.T) {
	srv, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, hasJobID := r.MultipartForm.Value["job_id"]
		require.False(t, hasJobID, "new jobs must not send a job_id field")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id": 1, "answer": "hello there"}`))
	})

	client := NewClient(srv.URL, 0)
	resp, err := client.SubmitDiscovery(context.Background(), protocol.DiscoveryRequest{
		Content: "hi",
	})
	require.NoError(t, err)
	require.False(t, resp.WorkflowTriggered, "conversational reply carries no workflow indicator")
	require.Equal(t, "hello there", resp.Reply())
}

func TestSubmitVerification_FormFields(t *testing.T) {
	srv, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "Kiwi fruit", r.FormValue("entity1"))
		require.Equal(t, "Cancer", r.FormValue("entity2"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job_id": 101, "answer": "checking..."}`))
	})

	client := NewClient(srv.URL, 0)
	resp, err := client.SubmitVerification(context.Background(), protocol.VerificationRequest{
		Entity1: "Kiwi fruit",
		Entity2: "Cancer",
	})
	require.NoError(t, err)
	require.Equal(t, int64(101), resp.JobID)
	require.Equal(t, "checking...", resp.Reply())
}

func TestSubmit_HTTPError(t *testing.T) {
	srv, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Job 42 not found"}`, http.StatusNotFound)
	})

	client := NewClient(srv.URL, 0)
	_, err := client.SubmitDiscovery(context.Background(), protocol.DiscoveryRequest{Content: "hi"})

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.Status)
	require.Contains(t, httpErr.Snippet, "not found")
}

func TestSubmit_MalformedResponse(t *testing.T) {
	srv, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id":`))
	})

	client := NewClient(srv.URL, 0)
	_, err := client.SubmitVerification(context.Background(), protocol.VerificationRequest{
		Entity1: "a", Entity2: "b",
	})
	require.Error(t, err)
}

func TestSubmit_ResponseMissingJobID(t *testing.T) {
	srv, _ := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer": "no id"}`))
	})

	client := NewClient(srv.URL, 0)
	_, err := client.SubmitVerification(context.Background(), protocol.VerificationRequest{
		Entity1: "a", Entity2: "b",
	})
	require.ErrorContains(t, err, "job_id")
}

func TestSubmitDiscovery_MissingAttachmentFile(t *testing.T) {
	srv, count := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {})

	client := NewClient(srv.URL, 0)
	_, err := client.SubmitDiscovery(context.Background(), protocol.DiscoveryRequest{
		Files: []protocol.Attachment{{Name: "gone.pdf", Path: "/nonexistent/gone.pdf"}},
	})
	require.Error(t, err)
	require.Zero(t, *count, "unreadable attachment fails before sending")
}
