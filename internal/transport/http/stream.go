package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"live-quiz-service/internal/domain"
)

// Frame types shared by the SSE and WebSocket streams.
const (
	frameState        = "state"
	frameUpdate       = "update"
	frameError        = "error"
	frameAnswerResult = "answerResult"
)

type frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type errorPayload struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// snapshotFrame labels the first snapshot of a subscription "state" and the
// rest "update".
func snapshotFrame(snap domain.Snapshot, first bool) frame {
	if first {
		return frame{Type: frameState, Data: snap}
	}
	return frame{Type: frameUpdate, Data: snap}
}

// stream serves the live channel as server-sent events.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, s.log, fmt.Errorf("streaming unsupported by %T", w))
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, cancel, err := s.service.Subscribe(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stream subscribe failed")
		_ = writeEvent(w, frame{Type: frameError, Data: errorPayload{Message: "Connection error"}})
		flusher.Flush()
		return
	}
	defer cancel()

	first := true
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, snapshotFrame(snap, first)); err != nil {
				s.log.Debug().Err(err).Msg("stream client gone")
				return
			}
			flusher.Flush()
			first = false
		}
	}
}

func writeEvent(w http.ResponseWriter, f frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", raw)
	return err
}
