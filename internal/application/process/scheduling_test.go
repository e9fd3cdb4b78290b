package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

func TestTermSchedule_CleanReviewPublishes(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTermScheduleService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "registrar", entity.Fragment{
		"calendar_id":   float64(11),
		"academic_year": "2026",
		"term_name":     "Term 1",
	})
	require.NoError(t, err)
	id := instance.ID

	_, err = svc.MapHolidays(ctx, id, "registrar", entity.Fragment{
		"holidays": []interface{}{"2026-01-01", "2026-04-03"},
	})
	require.NoError(t, err)
	_, err = svc.SubmitForReview(ctx, id, "registrar", nil)
	require.NoError(t, err)

	instance, err = svc.CompleteReview(ctx, id, "deputy", entity.Fragment{"conflicts": []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, StageCalendarApproval, instance.CurrentStage)

	_, err = svc.ApproveCalendar(ctx, id, "principal", nil)
	require.NoError(t, err)

	instance, err = svc.Publish(ctx, id, "registrar", entity.Fragment{
		"channels": []interface{}{"noticeboard", "sms"},
	})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StageCompleted, instance.CurrentStage)
	assert.Equal(t, domainwf.StatusCompleted, instance.Status)
}

func TestTermSchedule_ConflictsLoopToMapping(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTermScheduleService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "registrar", entity.Fragment{
		"calendar_id":   float64(12),
		"academic_year": "2026",
		"term_name":     "Term 2",
	})
	require.NoError(t, err)
	id := instance.ID

	_, err = svc.MapHolidays(ctx, id, "registrar", entity.Fragment{
		"holidays": []interface{}{"2026-06-01"},
	})
	require.NoError(t, err)
	_, err = svc.SubmitForReview(ctx, id, "registrar", nil)
	require.NoError(t, err)

	instance, err = svc.CompleteReview(ctx, id, "deputy", entity.Fragment{
		"conflicts": []interface{}{"exam week overlaps mid-term break"},
	})
	require.NoError(t, err)
	assert.Equal(t, StageHolidayMapping, instance.CurrentStage)
	assert.Equal(t, domainwf.StatusActive, instance.Status)
}

func TestTermSchedule_RejectedCalendar(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTermScheduleService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "registrar", entity.Fragment{
		"calendar_id":   float64(13),
		"academic_year": "2026",
		"term_name":     "Term 3",
	})
	require.NoError(t, err)
	id := instance.ID

	_, err = svc.MapHolidays(ctx, id, "registrar", entity.Fragment{"holidays": []interface{}{"2026-10-10"}})
	require.NoError(t, err)
	_, err = svc.SubmitForReview(ctx, id, "registrar", nil)
	require.NoError(t, err)
	_, err = svc.CompleteReview(ctx, id, "deputy", nil)
	require.NoError(t, err)

	instance, err = svc.RejectCalendar(ctx, id, "principal", entity.Fragment{"reason": "term too short"})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusRejected, instance.Status)
}

func TestTimetable_CleanRunPublishes(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTimetableService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "hod", entity.Fragment{
		"timetable_id": float64(21),
		"class_name":   "Form 2 East",
		"term_name":    "Term 1",
	})
	require.NoError(t, err)
	id := instance.ID

	slots := []interface{}{
		map[string]interface{}{"day": "mon", "period": float64(1), "subject": "maths", "teacher": "t-4"},
	}
	_, err = svc.AllocateSlots(ctx, id, "hod", entity.Fragment{"slots": slots})
	require.NoError(t, err)
	_, err = svc.SubmitForClashCheck(ctx, id, "hod", nil)
	require.NoError(t, err)

	instance, err = svc.RecordClashResults(ctx, id, "hod", nil)
	require.NoError(t, err)
	assert.Equal(t, StageTeacherConfirmation, instance.CurrentStage)

	_, err = svc.ConfirmTeachers(ctx, id, "hod", entity.Fragment{
		"confirmations": []interface{}{"t-4"},
	})
	require.NoError(t, err)
	_, err = svc.ApproveTimetable(ctx, id, "deputy", nil)
	require.NoError(t, err)

	instance, err = svc.Publish(ctx, id, "hod", nil)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusCompleted, instance.Status)
}

func TestTimetable_ClashesLoopToAllocation(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTimetableService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "hod", entity.Fragment{
		"timetable_id": float64(22),
		"class_name":   "Form 3 West",
		"term_name":    "Term 1",
	})
	require.NoError(t, err)
	id := instance.ID

	_, err = svc.AllocateSlots(ctx, id, "hod", entity.Fragment{"slots": []interface{}{"x"}})
	require.NoError(t, err)
	_, err = svc.SubmitForClashCheck(ctx, id, "hod", nil)
	require.NoError(t, err)

	instance, err = svc.RecordClashResults(ctx, id, "hod", entity.Fragment{
		"clashes": []interface{}{"t-4 double booked mon p1"},
	})
	require.NoError(t, err)
	assert.Equal(t, StageSlotAllocation, instance.CurrentStage)
}

func TestTimetable_TeacherDeclineLoopsToAllocation(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTimetableService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "hod", entity.Fragment{
		"timetable_id": float64(23),
		"class_name":   "Form 1 North",
		"term_name":    "Term 2",
	})
	require.NoError(t, err)
	id := instance.ID

	_, err = svc.AllocateSlots(ctx, id, "hod", entity.Fragment{"slots": []interface{}{"x"}})
	require.NoError(t, err)
	_, err = svc.SubmitForClashCheck(ctx, id, "hod", nil)
	require.NoError(t, err)
	_, err = svc.RecordClashResults(ctx, id, "hod", nil)
	require.NoError(t, err)

	instance, err = svc.RequestReallocation(ctx, id, "t-4", entity.Fragment{"reason": "lab unavailable"})
	require.NoError(t, err)
	assert.Equal(t, StageSlotAllocation, instance.CurrentStage)
}

func TestTimetable_CancelDraft(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewTimetableService(deps.engine, zap.NewNop())
	ctx := context.Background()

	instance, err := svc.Start(ctx, "hod", entity.Fragment{
		"timetable_id": float64(24),
		"class_name":   "Form 4 South",
		"term_name":    "Term 3",
	})
	require.NoError(t, err)

	instance, err = svc.Cancel(ctx, instance.ID, "hod", entity.Fragment{"reason": "class merged"})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusCancelled, instance.Status)
}
