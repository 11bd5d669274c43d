package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pageaudit/pageaudit/internal/audit"
	"github.com/pageaudit/pageaudit/internal/metrics"
	"github.com/pageaudit/pageaudit/internal/progress"
)

// handleAuditStream serves the progressive path: identical admission to the
// synchronous handler, then the job lifecycle as server-sent events. A
// disconnect stops the write loop only; the job keeps its slot until it
// settles.
func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	req, err := parseAuditRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if ok := s.admitClient(w, r); !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	fingerprint := audit.Fingerprint(req)
	if report, hit := s.cache.Get(r.Context(), fingerprint); hit {
		metrics.ObserveCacheLookup(true)
		s.streamCachedResult(w, flusher, report)
		return
	}
	metrics.ObserveCacheLookup(false)

	job, err := s.scheduler.Submit(req)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	setSSEHeaders(w)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			// Client gone; the job runs to completion or timeout regardless.
			return
		case evt, open := <-job.Events():
			if !open {
				return
			}
			if err := writeSSEEvent(w, evt); err != nil {
				s.logger.Debug("sse write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

// streamCachedResult replays the minimal lifecycle for a cache hit so
// streaming clients always see a terminal event.
func (s *Server) streamCachedResult(w http.ResponseWriter, flusher http.Flusher, report *audit.Report) {
	setSSEHeaders(w)
	evt := progress.Event{
		Stage:  progress.StageComplete,
		Report: report,
	}
	if err := writeSSEEvent(w, evt); err != nil {
		s.logger.Debug("sse write failed", zap.Error(err))
		return
	}
	flusher.Flush()
}

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func writeSSEEvent(w http.ResponseWriter, evt progress.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Stage, payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
