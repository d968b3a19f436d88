package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// VisitorCounter tracks unique site visitors by a cookie issued id.
type VisitorCounter struct {
	store VisitorStore
	now   func() time.Time
	newID func() string
}

func NewVisitorCounter(store VisitorStore) *VisitorCounter {
	return &VisitorCounter{
		store: store,
		now:   time.Now,
		newID: func() string { return "visitor_" + uuid.NewString() },
	}
}

// Track records a visit. An empty visitorID gets a fresh id, returned in the status.
func (c *VisitorCounter) Track(ctx context.Context, visitorID string) (domain.VisitStatus, error) {
	if visitorID == "" {
		visitorID = c.newID()
	}
	isNew, err := c.store.Touch(ctx, visitorID, c.now())
	if err != nil {
		return domain.VisitStatus{}, fmt.Errorf("track visitor: %w", err)
	}
	total, err := c.store.Count(ctx)
	if err != nil {
		return domain.VisitStatus{}, fmt.Errorf("count visitors: %w", err)
	}
	return domain.VisitStatus{VisitorID: visitorID, IsNewVisitor: isNew, TotalVisitors: total}, nil
}

// Count returns the number of unique visitors.
func (c *VisitorCounter) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}
