package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/validator"
)

const (
	wsReadLimit  = 4096
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 16
)

// WSHandler streams live snapshots over a WebSocket and accepts answers on the
// same connection.
type WSHandler struct {
	service  *app.QuizService
	limiter  *ClientLimiter
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, limiter *ClientLimiter, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		service: service,
		limiter: limiter,
		log:     log.With().Str("component", "ws_handler").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if strings.EqualFold(allowed, origin) {
						return true
					}
				}
				return false
			},
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerResultPayload struct {
	QuestionID   int  `json:"questionId"`
	IsCorrect    bool `json:"isCorrect"`
	PointsEarned int  `json:"pointsEarned"`
}

// ServeWS upgrades the request. userId, name and rollNo query parameters identify
// the participant for answers; a connection without userId is watch-only.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, name, rollNo := q.Get("userId"), q.Get("name"), q.Get("rollNo")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	updates, cancel, err := h.service.Subscribe(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("ws subscribe failed")
		_ = conn.WriteJSON(frame{Type: frameError, Data: errorPayload{Message: "Connection error"}})
		return
	}
	defer cancel()

	send := make(chan frame, wsSendBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write failed")
				// unblock the read loop
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		first := true
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- snapshotFrame(snap, first):
					first = false
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(f frame) {
		select {
		case send <- f:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			if userID == "" {
				reply(frame{Type: frameError, Data: errorPayload{Message: "userId query parameter is required to answer"}})
				continue
			}
			var req liveAnswerRequest
			if err := json.Unmarshal(inbound.Payload, &req); err != nil {
				reply(frame{Type: frameError, Data: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			req.UserID, req.Name, req.RollNo = userID, name, rollNo
			if err := validator.Struct(&req); err != nil {
				reply(h.errorFrame(err, userID))
				continue
			}
			if !h.limiter.Allow(userID) {
				reply(frame{Type: frameError, Data: errorPayload{Message: "too many requests"}})
				continue
			}
			res, err := h.service.SubmitAnswer(r.Context(), req.submission())
			if err != nil {
				reply(h.errorFrame(err, userID))
				continue
			}
			reply(frame{Type: frameAnswerResult, Data: answerResultPayload{
				QuestionID:   *req.QuestionID,
				IsCorrect:    res.IsCorrect,
				PointsEarned: res.PointsEarned,
			}})
		default:
			reply(frame{Type: frameError, Data: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// errorFrame turns a failed answer into an error frame. Internal errors are
// logged and masked.
func (h *WSHandler) errorFrame(err error, userID string) frame {
	if statusFor(err) == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("user_id", userID).Msg("ws answer failed")
		return frame{Type: frameError, Data: errorPayload{Message: "Internal server error"}}
	}
	payload := errorPayload{Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		payload.Fields = ve.Fields
	}
	return frame{Type: frameError, Data: payload}
}
