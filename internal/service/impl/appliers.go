package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/platform"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
)

// platformApplier replays one operation kind against the core school API.
// It validates the payload shape before spending a network call; the
// payload itself is forwarded untouched.
type platformApplier struct {
	kind     string
	path     string
	validate func(payload []byte) error
	client   *platform.Client
}

var _ service.OperationApplier = (*platformApplier)(nil)

func (a *platformApplier) Kind() string { return a.kind }

func (a *platformApplier) Apply(ctx context.Context, op domain.SyncOperation) error {
	if a.validate != nil {
		if err := a.validate(op.Payload); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}
	return a.client.Post(ctx, a.path, op.Payload, op.UserID.String(), op.ID.String())
}

// NewPlatformAppliers builds the shipped applier set, one per operation
// kind the mobile client queues.
func NewPlatformAppliers(pc *platform.Client) []service.OperationApplier {
	return []service.OperationApplier{
		&platformApplier{
			kind:     domain.OpBookingCreate,
			path:     "/internal/sync/bookings",
			validate: validateBookingCreate,
			client:   pc,
		},
		&platformApplier{
			kind:     domain.OpBookingCancel,
			path:     "/internal/sync/bookings/cancel",
			validate: validateBookingCancel,
			client:   pc,
		},
		&platformApplier{
			kind:     domain.OpFeedbackSubmit,
			path:     "/internal/sync/feedback",
			validate: validateFeedback,
			client:   pc,
		},
		&platformApplier{
			kind:     domain.OpLessonProgress,
			path:     "/internal/sync/lesson-progress",
			validate: validateLessonProgress,
			client:   pc,
		},
		&platformApplier{
			kind:     domain.OpQuizAttempt,
			path:     "/internal/sync/quiz-attempts",
			validate: validateQuizAttempt,
			client:   pc,
		},
	}
}

func validateBookingCreate(payload []byte) error {
	var p struct {
		LessonTypeID string    `json:"lessonTypeId"`
		StartsAt     time.Time `json:"startsAt"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.LessonTypeID == "" {
		return fmt.Errorf("lessonTypeId is required")
	}
	if p.StartsAt.IsZero() {
		return fmt.Errorf("startsAt is required")
	}
	return nil
}

func validateBookingCancel(payload []byte) error {
	var p struct {
		BookingID string `json:"bookingId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BookingID == "" {
		return fmt.Errorf("bookingId is required")
	}
	return nil
}

func validateFeedback(payload []byte) error {
	var p struct {
		BookingID string `json:"bookingId"`
		Rating    int    `json:"rating"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.BookingID == "" {
		return fmt.Errorf("bookingId is required")
	}
	if p.Rating < 1 || p.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

func validateLessonProgress(payload []byte) error {
	var p struct {
		LessonID string `json:"lessonId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.LessonID == "" {
		return fmt.Errorf("lessonId is required")
	}
	return nil
}

func validateQuizAttempt(payload []byte) error {
	var p struct {
		QuizID string `json:"quizId"`
		Score  *int   `json:"score"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	if p.QuizID == "" {
		return fmt.Errorf("quizId is required")
	}
	if p.Score == nil || *p.Score < 0 {
		return fmt.Errorf("score must be zero or positive")
	}
	return nil
}
