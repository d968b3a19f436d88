package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	visitorCookie = "visitor_id"
	visitorMaxAge = 365 * 24 * time.Hour
)

type liveAnswerRequest struct {
	UserID         string   `json:"userId" validate:"required"`
	Name           string   `json:"name"`
	RollNo         string   `json:"rollNo"`
	QuestionID     *int     `json:"questionId" validate:"required"`
	SelectedOption *int     `json:"selectedOption" validate:"required"`
	TimeTaken      *float64 `json:"timeTaken" validate:"required"`
}

func (req liveAnswerRequest) submission() domain.AnswerSubmission {
	return domain.AnswerSubmission{
		UserID:         req.UserID,
		Name:           req.Name,
		RollNo:         req.RollNo,
		QuestionID:     *req.QuestionID,
		SelectedOption: *req.SelectedOption,
		TimeTaken:      *req.TimeTaken,
	}
}

type stateRequest struct {
	Action         string `json:"action" validate:"required"`
	QuestionID     *int   `json:"questionId"`
	TotalQuestions *int   `json:"totalQuestions"`
	CountdownValue *int   `json:"countdownValue"`
}

type rewardRequest struct {
	UserID      string `json:"userId" validate:"required"`
	RewardGiven *bool  `json:"rewardGiven" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func identityFrom(r *http.Request) domain.Identity {
	q := r.URL.Query()
	return domain.Identity{RollNo: q.Get("rollNo"), MobileNo: q.Get("mobileNo"), Email: q.Get("email")}
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var in app.RegisterInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, s.log, err)
		return
	}
	user, err := s.service.Registry().Register(r.Context(), in)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "userId": user.ID, "user": user})
}

func (s *Server) lookupUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.Registry().LookupUser(r.Context(), identityFrom(r))
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exists": true, "user": user})
}

func (s *Server) checkCompleted(w http.ResponseWriter, r *http.Request) {
	done, result, err := s.service.Registry().CheckCompleted(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hasCompleted": done, "result": result})
}

func (s *Server) submitFinal(w http.ResponseWriter, r *http.Request) {
	var sub domain.FinalSubmission
	if err := decode(w, r, &sub); err != nil {
		writeError(w, s.log, err)
		return
	}
	result, err := s.service.Registry().SubmitFinal(r.Context(), sub)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "resultId": result.UserID, "result": result})
}

func (s *Server) submitLiveAnswer(w http.ResponseWriter, r *http.Request) {
	var req liveAnswerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if !s.limiter.Allow(req.UserID) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests"})
		return
	}
	res, err := s.service.SubmitAnswer(r.Context(), req.submission())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "isCorrect": res.IsCorrect, "pointsEarned": res.PointsEarned})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	entries, rank, err := s.service.Leaderboard(r.Context(), userID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	body := map[string]any{"success": true, "leaderboard": entries}
	if userID != "" {
		body["yourRank"] = rank
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) quizState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.State(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": state})
}

func (s *Server) updateQuizState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	action := app.Action(req.Action)
	if !action.Valid() {
		writeError(w, s.log, domain.NewValidationError("action", "Invalid action"))
		return
	}
	state, err := s.service.Apply(r.Context(), app.Command{
		Action:         action,
		QuestionID:     req.QuestionID,
		TotalQuestions: req.TotalQuestions,
		CountdownValue: req.CountdownValue,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "state": state})
}

func (s *Server) userQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := 0
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, s.log, domain.NewValidationError("count", "count must be a number"))
			return
		}
		count = n
	}
	questions, err := s.service.UserQuestions(r.Context(), q.Get("userId"), count)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "questions": questions})
}

func (s *Server) userAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := s.service.Answers(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "answers": answers})
}

func (s *Server) adminUsers(w http.ResponseWriter, r *http.Request) {
	overview, err := s.service.Registry().AdminOverview(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": overview})
}

func (s *Server) updateReward(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.service.Registry().SetReward(r.Context(), req.UserID, *req.RewardGiven); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Reward status updated successfully"})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	token, err := s.service.Registry().AdminLogin(req.Username, req.Password)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) randomQuestion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "question": s.service.RandomQuestion()})
}

func (s *Server) trackVisitor(w http.ResponseWriter, r *http.Request) {
	var visitorID string
	if c, err := r.Cookie(visitorCookie); err == nil {
		visitorID = c.Value
	}
	status, err := s.service.Visitors().Track(r.Context(), visitorID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    status.VisitorID,
		Path:     "/",
		MaxAge:   int(visitorMaxAge / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "isNewVisitor": status.IsNewVisitor, "totalVisitors": status.TotalVisitors})
}

func (s *Server) visitorCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.Visitors().Count(r.Context())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "totalVisitors": n})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
