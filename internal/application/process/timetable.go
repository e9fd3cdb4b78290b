package process

import (
	"context"

	"go.uber.org/zap"

	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// TimetableService drives the class timetabling process: slot allocation,
// clash detection, teacher confirmation and publication.
type TimetableService struct {
	engine appwf.Engine
	logger *zap.Logger
}

// NewTimetableService creates a new TimetableService
func NewTimetableService(engine appwf.Engine, logger *zap.Logger) *TimetableService {
	return &TimetableService{engine: engine, logger: logger}
}

// Start opens a timetabling workflow for one class and term.
// Required fields: timetable_id, class_name, term_name.
func (s *TimetableService) Start(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if err := requireFields(data, "timetable_id", "class_name", "term_name"); err != nil {
		return nil, err
	}
	timetableID, err := numFieldErr(data, "timetable_id")
	if err != nil {
		return nil, err
	}

	ref := entity.Reference{EntityType: "timetable", EntityID: int64(timetableID)}
	return s.engine.StartWorkflow(ctx, domainwf.ProcessClassTimetabling, ref, initiatorID, data)
}

// AllocateSlots records the proposed lesson slots.
// Stage: timetable_draft -> slot_allocation. Required: slots.
func (s *TimetableService) AllocateSlots(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTimetableDraft); err != nil {
		return nil, err
	}
	if err := requireFields(data, "slots"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageSlotAllocation, "slots_allocated", stamp(data, actorID), actorID)
}

// Cancel abandons the draft timetable.
// Stage: timetable_draft -> cancelled. Required: reason.
func (s *TimetableService) Cancel(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTimetableDraft); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCancelled, "draft_cancelled", stamp(data, actorID), actorID)
}

// SubmitForClashCheck hands the allocation to clash detection.
// Stage: slot_allocation -> clash_detection.
func (s *TimetableService) SubmitForClashCheck(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageSlotAllocation); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageClashDetection, "submitted_for_clash_check", stamp(data, actorID), actorID)
}

// RecordClashResults finishes clash detection. Any reported clashes send
// the timetable back to slot allocation, otherwise it moves to teacher
// confirmation. Stage: clash_detection -> teacher_confirmation | slot_allocation.
func (s *TimetableService) RecordClashResults(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageClashDetection); err != nil {
		return nil, err
	}

	target := StageTeacherConfirmation
	actionCode := "no_clashes"
	if clashes, ok := data["clashes"].([]interface{}); ok && len(clashes) > 0 {
		target = StageSlotAllocation
		actionCode = "clashes_found"
	}

	return s.engine.AdvanceStage(ctx, instanceID, target, actionCode, stamp(data, actorID), actorID)
}

// ConfirmTeachers records the affected teachers' sign-off.
// Stage: teacher_confirmation -> timetable_approval. Required: confirmations.
func (s *TimetableService) ConfirmTeachers(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTeacherConfirmation); err != nil {
		return nil, err
	}
	if err := requireFields(data, "confirmations"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageTimetableApproval, "teachers_confirmed", stamp(data, actorID), actorID)
}

// RequestReallocation sends the timetable back when a teacher declines.
// Stage: teacher_confirmation -> slot_allocation. Required: reason.
func (s *TimetableService) RequestReallocation(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTeacherConfirmation); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageSlotAllocation, "reallocation_requested", stamp(data, actorID), actorID)
}

// ApproveTimetable clears the timetable for publication.
// Stage: timetable_approval -> timetable_publication.
func (s *TimetableService) ApproveTimetable(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTimetableApproval); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageTimetablePublication, "timetable_approved", stamp(data, actorID), actorID)
}

// RejectTimetable declines the timetable.
// Stage: timetable_approval -> rejected. Required: reason.
func (s *TimetableService) RejectTimetable(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTimetableApproval); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "timetable_rejected", stamp(data, actorID), actorID)
}

// Publish releases the timetable to staff and students and completes the
// workflow. Stage: timetable_publication -> completed.
func (s *TimetableService) Publish(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTimetablePublication); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCompleted, "timetable_published", stamp(data, actorID), actorID)
}
