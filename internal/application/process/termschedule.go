package process

import (
	"context"

	"go.uber.org/zap"

	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// TermScheduleService drives the term and holiday scheduling process from a
// drafted term calendar through conflict review to publication.
type TermScheduleService struct {
	engine appwf.Engine
	logger *zap.Logger
}

// NewTermScheduleService creates a new TermScheduleService
func NewTermScheduleService(engine appwf.Engine, logger *zap.Logger) *TermScheduleService {
	return &TermScheduleService{engine: engine, logger: logger}
}

// Start opens a scheduling workflow for one term calendar.
// Required fields: calendar_id, academic_year, term_name.
func (s *TermScheduleService) Start(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if err := requireFields(data, "calendar_id", "academic_year", "term_name"); err != nil {
		return nil, err
	}
	calendarID, err := numFieldErr(data, "calendar_id")
	if err != nil {
		return nil, err
	}

	ref := entity.Reference{EntityType: "term_calendar", EntityID: int64(calendarID)}
	return s.engine.StartWorkflow(ctx, domainwf.ProcessTermScheduling, ref, initiatorID, data)
}

// MapHolidays records the public and school holidays falling in the term.
// Stage: term_draft -> holiday_mapping. Required: holidays.
func (s *TermScheduleService) MapHolidays(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTermDraft); err != nil {
		return nil, err
	}
	if err := requireFields(data, "holidays"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageHolidayMapping, "holidays_mapped", stamp(data, actorID), actorID)
}

// Cancel abandons the draft calendar.
// Stage: term_draft -> cancelled. Required: reason.
func (s *TermScheduleService) Cancel(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTermDraft); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCancelled, "draft_cancelled", stamp(data, actorID), actorID)
}

// SubmitForReview hands the mapped calendar to conflict review.
// Stage: holiday_mapping -> conflict_review.
func (s *TermScheduleService) SubmitForReview(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageHolidayMapping); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageConflictReview, "submitted_for_review", stamp(data, actorID), actorID)
}

// CompleteReview finishes conflict review. Any reported conflicts send the
// calendar back to holiday mapping; a clean review forwards it for approval.
// Stage: conflict_review -> calendar_approval | holiday_mapping.
func (s *TermScheduleService) CompleteReview(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageConflictReview); err != nil {
		return nil, err
	}

	target := StageCalendarApproval
	actionCode := "review_clean"
	if conflicts, ok := data["conflicts"].([]interface{}); ok && len(conflicts) > 0 {
		target = StageHolidayMapping
		actionCode = "conflicts_found"
	}

	return s.engine.AdvanceStage(ctx, instanceID, target, actionCode, stamp(data, actorID), actorID)
}

// ApproveCalendar clears the calendar for publication.
// Stage: calendar_approval -> calendar_publication.
func (s *TermScheduleService) ApproveCalendar(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageCalendarApproval); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageCalendarPublication, "calendar_approved", stamp(data, actorID), actorID)
}

// RejectCalendar declines the calendar.
// Stage: calendar_approval -> rejected. Required: reason.
func (s *TermScheduleService) RejectCalendar(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageCalendarApproval); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "calendar_rejected", stamp(data, actorID), actorID)
}

// Publish makes the calendar visible to staff and parents and completes the
// workflow. Stage: calendar_publication -> completed. Required: channels.
func (s *TermScheduleService) Publish(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageCalendarPublication); err != nil {
		return nil, err
	}
	if err := requireFields(data, "channels"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCompleted, "calendar_published", stamp(data, actorID), actorID)
}
