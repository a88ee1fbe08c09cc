package worker

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/enneadtab/revit-worker/internal/fileio"
	"github.com/enneadtab/revit-worker/internal/job"
	"github.com/enneadtab/revit-worker/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func RegisterApi(router *chi.Mux, worker *Worker) {
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		_ = render.Render(w, r, VersionReply{Version: Version()})
	})
	router.Get("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		statusHandler(worker, w, r)
	})
	router.Get("/api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		runsHandler(worker, w, r)
	})
}

type StatusReply struct {
	JobStatus       string `json:"jobStatus"`
	JobID           string `json:"jobId,omitempty"`
	BridgeConnected bool   `json:"bridgeConnected"`
	Heartbeat       string `json:"heartbeat,omitempty"`
}

type VersionReply struct {
	Version string `json:"version"`
}

type RunsReply struct {
	Runs []store.JobRun `json:"runs"`
}

func (s StatusReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (v VersionReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (rr RunsReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func statusHandler(worker *Worker, w http.ResponseWriter, r *http.Request) {
	reply := StatusReply{JobStatus: "idle"}

	descriptor := &job.Descriptor{}
	if err := fileio.NewReader().ReadJSON(worker.descriptorPath(), descriptor); err == nil {
		reply.JobID = descriptor.JobID
		reply.JobStatus = string(descriptor.Status)
		if reply.JobStatus == "" {
			reply.JobStatus = string(job.StatusCreated)
		}
	}

	if worker.client != nil {
		reply.BridgeConnected = worker.client.Health(r.Context()) == nil
	}
	if worker.heartbeat != nil {
		reply.Heartbeat = worker.heartbeat.Path()
	}

	_ = render.Render(w, r, reply)
}

func runsHandler(worker *Worker, w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := worker.store.ListRuns(r.Context(), limit)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.JobRun{}
	}
	_ = render.Render(w, r, RunsReply{Runs: runs})
}
