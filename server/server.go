// Package server exposes the translation engine over HTTP: multipart job
// submission, job status polling, live progress over websocket, and result
// download. Job records are persisted in SQLite so history survives
// restarts; live handles and progress hubs stay in memory.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/glotdoc/glotdoc/document"
	"github.com/glotdoc/glotdoc/engine"
	"github.com/glotdoc/glotdoc/format"
)

// maxUploadBytes bounds one submitted document.
const maxUploadBytes = 128 << 20

// Server wires the engine to the HTTP API.
type Server struct {
	engine  *engine.Engine
	formats *format.Registry
	store   *Store
	log     *slog.Logger

	uploadDir string
	outputDir string

	mu   sync.Mutex
	jobs map[string]*jobEntry
}

// jobEntry is the in-memory side of one job: the engine handle for
// cancellation and the hub for live progress.
type jobEntry struct {
	handle *engine.Handle
	hub    *hub

	progressMu sync.Mutex
	lastWrite  time.Time
}

// New creates a server. uploadDir and outputDir are created if missing.
func New(eng *engine.Engine, formats *format.Registry, store *Store, dataDir string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	uploadDir := filepath.Join(dataDir, "uploads")
	outputDir := filepath.Join(dataDir, "outputs")
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if n, err := store.ReapInterrupted(); err != nil {
		return nil, fmt.Errorf("reaping interrupted jobs: %w", err)
	} else if n > 0 {
		log.Warn("marked interrupted jobs as aborted", "count", n)
	}
	return &Server{
		engine:    eng,
		formats:   formats,
		store:     store,
		log:       log,
		uploadDir: uploadDir,
		outputDir: outputDir,
		jobs:      make(map[string]*jobEntry),
	}, nil
}

// Router builds the chi router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.createJob)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Get("/jobs/{id}/ws", s.jobWS)
		r.Get("/jobs/{id}/result", s.jobResult)
		r.Delete("/jobs/{id}", s.cancelJob)
		r.Get("/formats", s.listFormats)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return r
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start))
	})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// createJob accepts a multipart upload (file, target_lang, optional
// source_lang) and starts a translation job.
func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing upload: %v", err))
		return
	}

	targetLang := r.FormValue("target_lang")
	if targetLang == "" {
		writeError(w, http.StatusBadRequest, "target_lang is required")
		return
	}
	sourceLang := r.FormValue("source_lang")

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Stage the upload under a fresh name to avoid path tricks in the
	// client-supplied filename.
	ext := filepath.Ext(header.Filename)
	inputPath := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	dst, err := os.Create(inputPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "staging upload failed")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(inputPath)
		writeError(w, http.StatusInternalServerError, "staging upload failed")
		return
	}
	dst.Close()

	kind, err := format.Detect(inputPath)
	if err != nil {
		os.Remove(inputPath)
		if errors.Is(err, document.ErrUnsupportedFormat) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outputPath := filepath.Join(s.outputDir,
		fmt.Sprintf("%s_%s%s", baseName(header.Filename), targetLang, ext))

	// The job outlives this request: submitting under r.Context() would
	// cancel it the moment the handler returns. Cancellation goes through
	// Handle.Cancel via DELETE instead.
	entry := &jobEntry{}
	handle, err := s.engine.Submit(context.Background(), engine.Request{
		InputPath:  inputPath,
		OutputPath: outputPath,
		TargetLang: targetLang,
		SourceLang: sourceLang,
		OnProgress: func(p engine.Progress) { s.onProgress(entry, p) },
	})
	if err != nil {
		os.Remove(inputPath)
		var perr *document.ParseError
		if errors.As(err, &perr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry.handle = handle
	entry.hub = newHub(handle.ID)
	s.mu.Lock()
	s.jobs[handle.ID] = entry
	s.mu.Unlock()

	record := &JobRecord{
		ID:         handle.ID,
		Filename:   header.Filename,
		Format:     kind.String(),
		TargetLang: targetLang,
		SourceLang: sourceLang,
		State:      document.StateRunning.String(),
		TotalUnits: handle.Progress().TotalUnits,
		OutputPath: outputPath,
	}
	if err := s.store.Create(record); err != nil {
		s.log.Error("persisting job", "job", handle.ID, "err", err)
	}

	go s.watchJob(entry)

	writeJSON(w, http.StatusAccepted, record)
}

// onProgress relays engine snapshots to the hub and, throttled, to the
// store.
func (s *Server) onProgress(entry *jobEntry, p engine.Progress) {
	if entry.hub != nil {
		entry.hub.publish(document.StateRunning.String(), p)
	}

	entry.progressMu.Lock()
	due := time.Since(entry.lastWrite) >= 500*time.Millisecond
	if due {
		entry.lastWrite = time.Now()
	}
	entry.progressMu.Unlock()
	if due && entry.handle != nil {
		if err := s.store.UpdateProgress(entry.handle.ID, p.Percent(), p.DoneUnits, p.FailedUnits); err != nil {
			s.log.Warn("persisting progress", "job", entry.handle.ID, "err", err)
		}
	}
}

// watchJob waits for the terminal state and finalizes record and hub.
func (s *Server) watchJob(entry *jobEntry) {
	res, err := entry.handle.Await(context.Background())
	if err != nil {
		return
	}

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	p := entry.handle.Progress()
	if err := s.store.UpdateProgress(entry.handle.ID, p.Percent(), p.DoneUnits, p.FailedUnits); err != nil {
		s.log.Warn("persisting progress", "job", entry.handle.ID, "err", err)
	}
	if err := s.store.Finish(entry.handle.ID, res.State.String(), errMsg, res.OutputPath); err != nil {
		s.log.Error("finalizing job", "job", entry.handle.ID, "err", err)
	}

	entry.hub.publish(res.State.String(), p)
	entry.hub.close()

	// The record is terminal; drop the live entry so handles and hubs
	// don't accumulate for the lifetime of the process.
	s.mu.Lock()
	delete(s.jobs, entry.handle.ID)
	s.mu.Unlock()
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.List(100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*JobRecord{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	record, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) jobWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	entry, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "job not found or not live")
		return
	}
	entry.hub.serveWS(w, r)
}

func (s *Server) jobResult(w http.ResponseWriter, r *http.Request) {
	record, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	switch record.State {
	case document.StateCompleted.String(), document.StatePartialFailure.String():
	default:
		writeError(w, http.StatusConflict, "job has no output")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(record.OutputPath)))
	http.ServeFile(w, r, record.OutputPath)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	entry, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "job not found or not live")
		return
	}
	entry.handle.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) listFormats(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, k := range s.formats.Kinds() {
		names = append(names, k.String())
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*JobRecord, bool) {
	id := chi.URLParam(r, "id")
	record, err := s.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return record, true
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func baseName(filename string) string {
	base := filepath.Base(filename)
	return base[:len(base)-len(filepath.Ext(base))]
}
