package process

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/port"
	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// Disposal methods accepted at execution time. Sale-like methods route to
// proceeds recording, the rest are written off.
const (
	DisposalMethodSale     = "sale"
	DisposalMethodTradeIn  = "trade_in"
	DisposalMethodDonation = "donation"
	DisposalMethodScrap    = "scrap"
)

var disposalMethods = []string{DisposalMethodSale, DisposalMethodTradeIn, DisposalMethodDonation, DisposalMethodScrap}

// DisposalService drives the asset disposal process. Each exported method is
// the stage action handler for one transition; the engine's guarded
// transition re-validates every target against the disposal graph.
type DisposalService struct {
	engine    appwf.Engine
	inventory port.InventoryRepository
	roles     port.RoleLookup
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewDisposalService creates a new DisposalService
func NewDisposalService(
	engine appwf.Engine,
	inventory port.InventoryRepository,
	roles port.RoleLookup,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *DisposalService {
	return &DisposalService{
		engine:    engine,
		inventory: inventory,
		roles:     roles,
		txManager: txManager,
		logger:    logger,
	}
}

// Start opens a disposal workflow for one inventory item.
// Required fields: item_id, reason.
func (s *DisposalService) Start(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if err := requireFields(data, "item_id", "reason"); err != nil {
		return nil, err
	}
	itemID, err := numFieldErr(data, "item_id")
	if err != nil {
		return nil, err
	}

	item, err := s.inventory.GetByID(ctx, int64(itemID))
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: inventory item %d", domainwf.ErrNotFound, int64(itemID))
	}
	if item.Disposed {
		return nil, &domainwf.InvalidValueError{Field: "item_id",
			Value: fmt.Sprint(item.ID), Allowed: []string{"an item not already disposed"}}
	}

	ref := entity.Reference{EntityType: "inventory_item", EntityID: item.ID}
	return s.engine.StartWorkflow(ctx, domainwf.ProcessAssetDisposal, ref, initiatorID, data)
}

// AssessCondition records the item's physical condition.
// Stage: disposal_request -> condition_assessment. Required: condition.
func (s *DisposalService) AssessCondition(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageDisposalRequest); err != nil {
		return nil, err
	}
	if err := requireFields(data, "condition"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageConditionAssessment, "condition_assessed", stamp(data, actorID), actorID)
}

// RejectRequest declines the disposal request outright.
// Stage: disposal_request -> rejected. Required: reason.
func (s *DisposalService) RejectRequest(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageDisposalRequest); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "request_rejected", stamp(data, actorID), actorID)
}

// RecordValuation attaches the assessed value used later by the
// authority-gated approval.
// Stage: condition_assessment -> valuation. Required: assessed_value.
func (s *DisposalService) RecordValuation(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageConditionAssessment); err != nil {
		return nil, err
	}
	if err := requireFields(data, "assessed_value"); err != nil {
		return nil, err
	}
	if _, err := numFieldErr(data, "assessed_value"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageValuation, "valuation_recorded", stamp(data, actorID), actorID)
}

// ReturnToRequest sends the assessment back for more information.
// Stage: condition_assessment -> disposal_request. Required: reason.
func (s *DisposalService) ReturnToRequest(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageConditionAssessment); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageDisposalRequest, "returned_for_revision", stamp(data, actorID), actorID)
}

// SubmitForApproval forwards the valued item to the approver.
// Stage: valuation -> disposal_approval.
func (s *DisposalService) SubmitForApproval(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageValuation); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageDisposalApproval, "submitted_for_approval", stamp(data, actorID), actorID)
}

// Cancel abandons the disposal before approval.
// Stage: valuation -> cancelled. Required: reason.
func (s *DisposalService) Cancel(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageValuation); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCancelled, "disposal_cancelled", stamp(data, actorID), actorID)
}

// Approve authorizes the disposal. The actor's role ceiling must cover the
// assessed value recorded at the valuation stage.
// Stage: disposal_approval -> disposal_execution.
func (s *DisposalService) Approve(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageDisposalApproval)
	if err != nil {
		return nil, err
	}

	valuation := instance.Payload.Fragment(StageValuation)
	assessedValue, ok := numField(valuation, "assessed_value")
	if !ok {
		return nil, fmt.Errorf("instance %s has no assessed value on record", instanceID)
	}

	role, err := checkAuthority(ctx, s.roles, actorID, assessedValue)
	if err != nil {
		return nil, err
	}

	frag := stamp(data, actorID)
	frag["approver_role"] = role.Role
	frag["approved_value"] = assessedValue
	return s.engine.AdvanceStage(ctx, instanceID, StageDisposalExecution, "disposal_approved", frag, actorID)
}

// Reject declines the disposal at approval.
// Stage: disposal_approval -> rejected. Required: reason.
func (s *DisposalService) Reject(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageDisposalApproval); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "disposal_rejected", stamp(data, actorID), actorID)
}

// Execute carries out the disposal with the selected method. Sale and
// trade-in route to proceeds recording, donation and scrap to write-off.
// Stage: disposal_execution -> proceeds_recording | write_off_processing.
// Required: method.
func (s *DisposalService) Execute(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageDisposalExecution); err != nil {
		return nil, err
	}
	if err := requireFields(data, "method"); err != nil {
		return nil, err
	}
	method, _ := stringField(data, "method")

	var target domainwf.Stage
	switch method {
	case DisposalMethodSale, DisposalMethodTradeIn:
		target = StageProceedsRecording
	case DisposalMethodDonation, DisposalMethodScrap:
		target = StageWriteOffProcessing
	default:
		return nil, &domainwf.InvalidValueError{Field: "method", Value: method, Allowed: disposalMethods}
	}

	return s.engine.AdvanceStage(ctx, instanceID, target, "disposal_executed", stamp(data, actorID), actorID)
}

// RecordProceeds books the sale or trade-in income.
// Stage: proceeds_recording -> inventory_removal. Required: amount, receipt_no.
func (s *DisposalService) RecordProceeds(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageProceedsRecording); err != nil {
		return nil, err
	}
	if err := requireFields(data, "amount", "receipt_no"); err != nil {
		return nil, err
	}
	if _, err := numFieldErr(data, "amount"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageInventoryRemoval, "proceeds_recorded", stamp(data, actorID), actorID)
}

// ProcessWriteOff books the write-off for donated or scrapped items.
// Stage: write_off_processing -> inventory_removal. Required: write_off_ref.
func (s *DisposalService) ProcessWriteOff(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageWriteOffProcessing); err != nil {
		return nil, err
	}
	if err := requireFields(data, "write_off_ref"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageInventoryRemoval, "write_off_processed", stamp(data, actorID), actorID)
}

// RemoveFromInventory marks the item disposed and completes the workflow.
// The inventory mutation and the final transition commit atomically.
// Stage: inventory_removal -> completed.
func (s *DisposalService) RemoveFromInventory(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageInventoryRemoval)
	if err != nil {
		return nil, err
	}

	var updated *entity.WorkflowInstance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.inventory.MarkDisposed(txCtx, instance.Reference.EntityID); err != nil {
			return fmt.Errorf("mark item disposed: %w", err)
		}
		updated, err = s.engine.AdvanceStage(txCtx, instanceID, domainwf.StageCompleted, "inventory_removed", stamp(data, actorID), actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Disposal completed",
		zap.String("instance_id", instanceID),
		zap.Int64("item_id", instance.Reference.EntityID))
	return updated, nil
}
