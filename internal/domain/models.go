package domain

import "time"

const (
	// DefaultTotalQuestions is the number of rounds in a fresh quiz.
	DefaultTotalQuestions = 10
	// MaxTotalQuestions bounds the admin supplied question count.
	MaxTotalQuestions = 50
	// CountdownStart is the first value shown by the pre-question countdown.
	CountdownStart = 5
	// AnswerWindow is how long a question accepts answers.
	AnswerWindow = 15 * time.Second
	// RewardThreshold is the percentage a participant needs to be eligible for a reward.
	RewardThreshold = 80
	// OptionsPerQuestion is the fixed number of choices per question.
	OptionsPerQuestion = 4
)

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID            int      `json:"id" yaml:"id"`
	Question      string   `json:"question" yaml:"question"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"correctAnswer" yaml:"correctAnswer"`
	Category      string   `json:"category" yaml:"category"`
}

// PublicQuestion is a question without its answer, safe to send to participants.
type PublicQuestion struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Category string   `json:"category"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Question: q.Question, Options: q.Options, Category: q.Category}
}

// QuizState is the single shared record describing quiz progress.
type QuizState struct {
	IsActive             bool       `json:"isActive"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	CurrentQuestionID    *int       `json:"currentQuestionId"`
	QuestionStartTime    *time.Time `json:"questionStartTime"`
	CountdownActive      bool       `json:"countdownActive"`
	CountdownValue       int        `json:"countdownValue"`
	TotalQuestions       int        `json:"totalQuestions"`
	StartedAt            *time.Time `json:"startedAt"`
	EndedAt              *time.Time `json:"endedAt"`
	Participants         int        `json:"participants"`
	Round                int        `json:"round"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// DefaultQuizState returns the construction defaults for the given round.
func DefaultQuizState(round int) QuizState {
	return QuizState{
		TotalQuestions: DefaultTotalQuestions,
		Round:          round,
	}
}

// Ended reports whether the quiz reached its terminal state.
func (s QuizState) Ended() bool {
	return s.EndedAt != nil
}

// QuestionEndsAt is the derived deadline of the active question, if any.
func (s QuizState) QuestionEndsAt() *time.Time {
	if !s.IsActive || s.QuestionStartTime == nil {
		return nil
	}
	t := s.QuestionStartTime.Add(AnswerWindow)
	return &t
}

// AnswerRecord is one participant's answer to one question in one round.
type AnswerRecord struct {
	UserID         string    `json:"userId"`
	QuestionID     int       `json:"questionId"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	TimeTaken      float64   `json:"timeTaken"`
	PointsEarned   int       `json:"pointsEarned"`
	AnsweredAt     time.Time `json:"answeredAt"`
	Round          int       `json:"round"`
}

// Identity holds the unique participant identifiers. Empty fields are ignored in lookups.
type Identity struct {
	RollNo   string `json:"rollNo"`
	MobileNo string `json:"mobileNo"`
	Email    string `json:"email"`
}

// Empty reports whether no identifier is set.
func (i Identity) Empty() bool {
	return i.RollNo == "" && i.MobileNo == "" && i.Email == ""
}

// Matches reports whether any non-empty identifier of i equals the same field of other.
func (i Identity) Matches(other Identity) bool {
	return (i.RollNo != "" && i.RollNo == other.RollNo) ||
		(i.MobileNo != "" && i.MobileNo == other.MobileNo) ||
		(i.Email != "" && i.Email == other.Email)
}

// User is a registered participant.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RollNo    string    `json:"rollNo"`
	MobileNo  string    `json:"mobileNo"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Identity() Identity {
	return Identity{RollNo: u.RollNo, MobileNo: u.MobileNo, Email: u.Email}
}

// ParticipantResult is the aggregate per participant that the leaderboard ranks.
type ParticipantResult struct {
	UserID              string         `json:"userId"`
	Name                string         `json:"name"`
	RollNo              string         `json:"rollNo"`
	MobileNo            string         `json:"mobileNo"`
	Email               string         `json:"email"`
	Answers             []AnswerRecord `json:"answers"`
	Score               int            `json:"score"`
	TotalPoints         int            `json:"totalPoints"`
	TotalQuestions      int            `json:"totalQuestions"`
	Percentage          int            `json:"percentage"`
	IsEligibleForReward bool           `json:"isEligibleForReward"`
	RewardGiven         bool           `json:"rewardGiven"`
	Round               int            `json:"round"`
	CompletedAt         time.Time      `json:"completedAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

func (r ParticipantResult) Identity() Identity {
	return Identity{RollNo: r.RollNo, MobileNo: r.MobileNo, Email: r.Email}
}

// LeaderboardEntry is a ranked, snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	UserID         string    `json:"userId"`
	Name           string    `json:"name"`
	RollNo         string    `json:"rollNo"`
	TotalPoints    int       `json:"totalPoints"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	LastAnsweredAt time.Time `json:"lastAnsweredAt"`
}

// Snapshot is what the live channel pushes to every subscriber.
type Snapshot struct {
	QuizState
	QuestionEndsAt *time.Time         `json:"questionEndsAt"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
	Seq            uint64             `json:"seq"`
	ServerTime     time.Time          `json:"serverTime"`
}

// AnswerSubmission models a live answer from a participant.
type AnswerSubmission struct {
	UserID         string
	Name           string
	RollNo         string
	QuestionID     int
	SelectedOption int
	TimeTaken      float64
}

// AnswerResult is returned to the submitter; it never exposes the full state.
type AnswerResult struct {
	IsCorrect    bool `json:"isCorrect"`
	PointsEarned int  `json:"pointsEarned"`
}

// FinalSubmission is the legacy one-shot result upload.
type FinalSubmission struct {
	UserID         string         `json:"userId"`
	Name           string         `json:"name" validate:"required"`
	RollNo         string         `json:"rollNo" validate:"required"`
	MobileNo       string         `json:"mobileNo" validate:"required"`
	Email          string         `json:"email" validate:"required"`
	Score          int            `json:"score" validate:"min=0,ltefield=TotalQuestions"`
	TotalQuestions int            `json:"totalQuestions" validate:"required,min=1,max=50"`
	Answers        []AnswerRecord `json:"answers" validate:"required"`
}

// Visitor tracks unique visits keyed by a cookie issued id.
type Visitor struct {
	VisitorID  string    `json:"visitorId"`
	FirstVisit time.Time `json:"firstVisit"`
	LastVisit  time.Time `json:"lastVisit"`
	VisitCount int       `json:"visitCount"`
}

// VisitStatus is the outcome of tracking one visit.
type VisitStatus struct {
	VisitorID     string `json:"-"`
	IsNewVisitor  bool   `json:"isNewVisitor"`
	TotalVisitors int    `json:"totalVisitors"`
}

// AdminStatistics summarises all results for the admin panel.
type AdminStatistics struct {
	TotalUsers         int `json:"totalUsers"`
	EligibleForRewards int `json:"eligibleForRewards"`
	AverageScore       int `json:"averageScore"`
	RewardsGiven       int `json:"rewardsGiven"`
}

// AdminOverview is the admin panel payload.
type AdminOverview struct {
	Users      []ParticipantResult `json:"users"`
	Statistics AdminStatistics     `json:"statistics"`
}

// Clone returns a copy that shares no pointers with s.
func (s QuizState) Clone() QuizState {
	out := s
	out.CurrentQuestionID = cloneInt(s.CurrentQuestionID)
	out.QuestionStartTime = cloneTime(s.QuestionStartTime)
	out.StartedAt = cloneTime(s.StartedAt)
	out.EndedAt = cloneTime(s.EndedAt)
	return out
}

// Clone returns a copy with its own answers slice.
func (r ParticipantResult) Clone() ParticipantResult {
	out := r
	if r.Answers != nil {
		out.Answers = make([]AnswerRecord, len(r.Answers))
		copy(out.Answers, r.Answers)
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
