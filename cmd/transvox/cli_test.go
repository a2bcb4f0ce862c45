package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transvox/internal/api"
	"transvox/internal/history"
	"transvox/internal/testsupport"
)

func runCommand(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server, "--user", "alice"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestHealthCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Version: "1.2.3"})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (1.2.3)")
}

func TestWhoamiCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/whoami", r.URL.Path)
		require.Equal(t, "alice", r.Header.Get("X-User-ID"))
		_ = json.NewEncoder(w).Encode(api.WhoamiResponse{
			UserID:     "alice",
			QueueDepth: 2,
			LatestJob:  &api.JobView{ID: "job-9", Status: "running"},
		})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "User: alice")
	assert.Contains(t, out, "Queued jobs: 2")
	assert.Contains(t, out, "job-9 (running)")
}

func TestSubmitCommand(t *testing.T) {
	video := testsupport.WriteVideo(t, t.TempDir(), "movie.mp4", 16)

	var received api.StartRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pipeline/start", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "alice", r.Header.Get("X-User-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.StartResponse{
			Job: api.JobView{ID: "job-123", Status: "queued"},
		})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "submit", video,
		"--target-lang", "zh", "--no-diarization", "--tts-engine", "indextts")
	require.NoError(t, err)
	assert.Contains(t, out, "Job job-123 queued")
	assert.Equal(t, video, received.VideoPath)
	assert.Equal(t, "zh", received.TargetLang)
	assert.Equal(t, "indextts", received.TTSEngine)
	require.NotNil(t, received.Diarization)
	assert.False(t, *received.Diarization)
	assert.Nil(t, received.Separation)
}

func TestSubmitRequiresTargetLang(t *testing.T) {
	_, err := runCommand(t, "http://127.0.0.1:1", "submit", "/tmp/x.mp4")
	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pipeline/status/job-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.JobView{
			ID:        "job-1",
			Status:    "running",
			Stage:     "Transcribing",
			Percent:   20,
			VideoPath: "/videos/movie.mp4",
		})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "status", "job-1")
	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Transcribing (20%)")
}

func TestStatusErrorSurfacesMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job not found"})
	}))
	defer ts.Close()

	_, err := runCommand(t, ts.URL, "status", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestStopCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/pipeline/stop/job-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.JobView{ID: "job-1", Status: "cancelled"})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "stop", "job-1")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")
}

func TestClearCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]string{"cleared": "job-1"})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "clear", "job-1")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
}

func TestHistoryCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pipeline/history", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HistoryResponse{Jobs: []history.Record{
			{
				ID:         "abcdef1234567890",
				Status:     "succeeded",
				TargetLang: "zh",
				FinishedAt: time.Now(),
				FinalVideo: "/out/movie_dubbed.mp4",
			},
		}})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "abcdef12")
	assert.Contains(t, out, "succeeded")
}

func TestHistoryEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.HistoryResponse{})
	}))
	defer ts.Close()

	out, err := runCommand(t, ts.URL, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No finished jobs")
}
