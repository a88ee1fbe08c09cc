package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/enneadtab/revit-worker/internal/fileio"
	"github.com/enneadtab/revit-worker/internal/job"
	"github.com/enneadtab/revit-worker/internal/store"
	"github.com/enneadtab/revit-worker/internal/worker/config"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	runs    []store.JobRun
	listErr error
	created []*store.JobRun
}

func (f *fakeStore) CreateRun(ctx context.Context, run *store.JobRun) error {
	f.created = append(f.created, run)
	return nil
}

func (f *fakeStore) ListRuns(ctx context.Context, limit int) ([]store.JobRun, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeStore) LatestRun(ctx context.Context) (*store.JobRun, error) {
	if len(f.runs) == 0 {
		return nil, store.ErrRecordNotFound
	}
	return &f.runs[0], nil
}

func (f *fakeStore) Close() error { return nil }

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	cfg := config.NewDefault()
	cfg.DataDir = t.TempDir()
	w := New(cfg)
	w.store = &fakeStore{}
	return w
}

func serveRequest(t *testing.T, w *Worker, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	RegisterApi(router, w)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func TestHealthzEndpoint(t *testing.T) {
	recorder := serveRequest(t, newTestWorker(t), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestVersionEndpoint(t *testing.T) {
	recorder := serveRequest(t, newTestWorker(t), http.MethodGet, "/api/v1/version")
	require.Equal(t, http.StatusOK, recorder.Code)

	reply := VersionReply{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reply))
	require.Equal(t, "dev", reply.Version)
}

func TestStatusEndpointIdle(t *testing.T) {
	recorder := serveRequest(t, newTestWorker(t), http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, recorder.Code)

	reply := StatusReply{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reply))
	require.Equal(t, "idle", reply.JobStatus)
	require.False(t, reply.BridgeConnected)
}

func TestStatusEndpointWithJob(t *testing.T) {
	w := newTestWorker(t)
	require.NoError(t, fileio.NewWriter().WriteJSONAtomic(w.descriptorPath(), &job.Descriptor{
		JobID:  "job-7",
		Status: job.StatusRunning,
	}))

	recorder := serveRequest(t, w, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, recorder.Code)

	reply := StatusReply{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reply))
	require.Equal(t, "job-7", reply.JobID)
	require.Equal(t, string(job.StatusRunning), reply.JobStatus)
}

func TestRunsEndpoint(t *testing.T) {
	w := newTestWorker(t)
	w.store = &fakeStore{runs: []store.JobRun{
		{ID: "r1", JobID: "job-1", Status: "completed"},
		{ID: "r2", JobID: "job-2", Status: "failed"},
	}}

	recorder := serveRequest(t, w, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, recorder.Code)

	reply := RunsReply{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reply))
	require.Len(t, reply.Runs, 2)

	recorder = serveRequest(t, w, http.MethodGet, "/api/v1/runs?limit=1")
	reply = RunsReply{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reply))
	require.Len(t, reply.Runs, 1)
	require.Equal(t, "job-1", reply.Runs[0].JobID)
}

func TestRunsEndpointRejectsBadLimit(t *testing.T) {
	recorder := serveRequest(t, newTestWorker(t), http.MethodGet, "/api/v1/runs?limit=nope")
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRunsEndpointStoreError(t *testing.T) {
	w := newTestWorker(t)
	w.store = &fakeStore{listErr: errors.New("db gone")}
	recorder := serveRequest(t, w, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestHasPendingJob(t *testing.T) {
	w := newTestWorker(t)
	require.False(t, w.hasPendingJob(), "no descriptor file")

	writer := fileio.NewWriter()
	descriptorPath := filepath.Join(w.config.DataDir, job.DescriptorFile)

	require.NoError(t, writer.WriteJSONAtomic(descriptorPath, &job.Descriptor{JobID: "j1", Status: job.StatusCreated}))
	require.True(t, w.hasPendingJob())

	require.NoError(t, writer.WriteJSONAtomic(descriptorPath, &job.Descriptor{JobID: "j1", Status: job.StatusCompleted}))
	require.False(t, w.hasPendingJob(), "terminal descriptors belong to the orchestrator")

	require.NoError(t, writer.WriteJSONAtomic(descriptorPath, &job.Descriptor{JobID: "j2", Status: job.StatusFailed}))
	require.False(t, w.hasPendingJob())
}
