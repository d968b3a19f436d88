package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/scoring"
	"live-quiz-service/internal/validator"
)

// RegisterInput is a participant registration request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	RollNo   string `json:"rollNo" validate:"required,rollno"`
	MobileNo string `json:"mobileNo" validate:"required,mobile"`
	Email    string `json:"email" validate:"required,email"`
}

// AdminCredentials are compared in plaintext on admin login.
type AdminCredentials struct {
	Username string
	Password string
}

// Registry handles participant registration, one-shot results and the admin panel.
type Registry struct {
	users   UserStore
	results ResultStore
	states  StateStore
	admin   AdminCredentials
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

func NewRegistry(users UserStore, results ResultStore, states StateStore, admin AdminCredentials, log zerolog.Logger) *Registry {
	return &Registry{
		users:   users,
		results: results,
		states:  states,
		admin:   admin,
		log:     log.With().Str("component", "registry").Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Register creates a participant. Any clash on roll number, mobile or email is a conflict.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	if err := validator.Struct(in); err != nil {
		return domain.User{}, err
	}
	now := r.now()
	u := domain.User{
		ID:        r.newID(),
		Name:      in.Name,
		RollNo:    in.RollNo,
		MobileNo:  in.MobileNo,
		Email:     in.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.users.Create(ctx, u); err != nil {
		return domain.User{}, err
	}
	r.log.Info().Str("user_id", u.ID).Str("roll_no", u.RollNo).Msg("participant registered")
	return u, nil
}

// LookupUser finds a participant by any identifier.
func (r *Registry) LookupUser(ctx context.Context, identity domain.Identity) (domain.User, error) {
	if identity.Empty() {
		return domain.User{}, domain.NewValidationError("identity", "at least one identifier is required")
	}
	return r.users.Find(ctx, identity)
}

// CheckCompleted reports whether a result exists for any identifier.
func (r *Registry) CheckCompleted(ctx context.Context, identity domain.Identity) (bool, *domain.ParticipantResult, error) {
	if identity.Empty() {
		return false, nil, domain.NewValidationError("identity", "at least one identifier is required")
	}
	res, err := r.results.FindResult(ctx, identity)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, &res, nil
}

// SubmitFinal stores a one-shot result computed by the client. It is a conflict
// when any identifier already has a result.
func (r *Registry) SubmitFinal(ctx context.Context, sub domain.FinalSubmission) (domain.ParticipantResult, error) {
	if err := validator.Struct(sub); err != nil {
		return domain.ParticipantResult{}, err
	}
	state, err := r.states.Load(ctx)
	if err != nil {
		return domain.ParticipantResult{}, fmt.Errorf("load quiz state: %w", err)
	}

	userID := sub.UserID
	if userID == "" {
		userID = r.newID()
	}
	now := r.now()
	percentage := scoring.Percentage(sub.Score, sub.TotalQuestions)
	points := 0
	for _, a := range sub.Answers {
		points += a.PointsEarned
	}
	res := domain.ParticipantResult{
		UserID:              userID,
		Name:                sub.Name,
		RollNo:              sub.RollNo,
		MobileNo:            sub.MobileNo,
		Email:               sub.Email,
		Answers:             sub.Answers,
		Score:               sub.Score,
		TotalPoints:         points,
		TotalQuestions:      sub.TotalQuestions,
		Percentage:          percentage,
		IsEligibleForReward: percentage >= domain.RewardThreshold,
		Round:               state.Round,
		CompletedAt:         now,
		UpdatedAt:           now,
	}
	if err := r.results.CreateResult(ctx, res); err != nil {
		return domain.ParticipantResult{}, err
	}
	r.log.Info().Str("user_id", userID).Int("percentage", percentage).Msg("final result stored")
	return res, nil
}

// AdminOverview lists every result, newest first, with summary statistics.
func (r *Registry) AdminOverview(ctx context.Context) (domain.AdminOverview, error) {
	results, err := r.results.ListResults(ctx)
	if err != nil {
		return domain.AdminOverview{}, fmt.Errorf("list results: %w", err)
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})

	stats := domain.AdminStatistics{TotalUsers: len(results)}
	sum := 0
	for _, res := range results {
		if res.IsEligibleForReward {
			stats.EligibleForRewards++
		}
		if res.RewardGiven {
			stats.RewardsGiven++
		}
		sum += res.Percentage
	}
	if len(results) > 0 {
		stats.AverageScore = scoring.Percentage(sum, len(results)*100)
	}
	return domain.AdminOverview{Users: results, Statistics: stats}, nil
}

// SetReward marks whether a participant has collected their reward.
func (r *Registry) SetReward(ctx context.Context, userID string, given bool) error {
	if userID == "" {
		return domain.NewValidationError("userId", "userId is required")
	}
	if _, err := r.results.GetResult(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	now := r.now()
	_, err := r.results.UpdateResult(ctx, userID, func(res *domain.ParticipantResult, exists bool) error {
		if !exists {
			return domain.ErrUserNotFound
		}
		res.RewardGiven = given
		res.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Info().Str("user_id", userID).Bool("reward_given", given).Msg("reward updated")
	return nil
}

// AdminLogin checks the configured credentials and issues an opaque bearer token.
func (r *Registry) AdminLogin(username, password string) (string, error) {
	if username == "" || password == "" {
		return "", domain.NewValidationError("credentials", "username and password are required")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(r.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(r.admin.Password)) == 1
	if !userOK || !passOK || r.admin.Username == "" {
		r.log.Warn().Str("username", username).Msg("admin login rejected")
		return "", domain.ErrBadCredentials
	}
	return r.newID(), nil
}
