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

// Quality check outcomes.
const (
	QualityCheckPassed = "passed"
	QualityCheckFailed = "failed"
)

// TransferService drives the stock transfer process: picking at the source
// location, dispatch, receipt and posting at the destination.
type TransferService struct {
	engine    appwf.Engine
	inventory port.InventoryRepository
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(
	engine appwf.Engine,
	inventory port.InventoryRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		engine:    engine,
		inventory: inventory,
		txManager: txManager,
		logger:    logger,
	}
}

// Start opens a transfer workflow.
// Required fields: transfer_id, items, source, destination.
func (s *TransferService) Start(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if err := requireFields(data, "transfer_id", "items", "source", "destination"); err != nil {
		return nil, err
	}
	transferID, err := numFieldErr(data, "transfer_id")
	if err != nil {
		return nil, err
	}
	if _, err := quantityMap(data, "items"); err != nil {
		return nil, err
	}

	ref := entity.Reference{EntityType: "transfer_record", EntityID: int64(transferID)}
	return s.engine.StartWorkflow(ctx, domainwf.ProcessStockTransfer, ref, initiatorID, data)
}

// Approve releases the transfer for picking.
// Stage: transfer_request -> stock_picking.
func (s *TransferService) Approve(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTransferRequest); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageStockPicking, "transfer_approved", stamp(data, actorID), actorID)
}

// Reject declines the transfer request.
// Stage: transfer_request -> rejected. Required: reason.
func (s *TransferService) Reject(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageTransferRequest); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "transfer_rejected", stamp(data, actorID), actorID)
}

// PickStock records picked quantities and deducts them from the source
// location. On a re-pick after a failed quality check the previous pick's
// deduction is restored first, so only the latest pick stays off the books.
// Stock mutations and transition commit atomically.
// Stage: stock_picking -> quality_check. Required: picked.
func (s *TransferService) PickStock(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageStockPicking)
	if err != nil {
		return nil, err
	}
	picked, err := quantityMap(data, "picked")
	if err != nil {
		return nil, err
	}
	source, ok := numField(instance.Payload.Fragment(appwf.InitialPayloadKey), "source")
	if !ok {
		return nil, fmt.Errorf("instance %s has no source location on record", instanceID)
	}

	// A prior pick exists only when the quality check sent the batch back.
	var prior map[int64]int64
	if frag := instance.Payload.Fragment(StageQualityCheck); frag != nil {
		prior, err = quantityMap(frag, "picked")
		if err != nil {
			return nil, fmt.Errorf("instance %s has unreadable prior pick on record: %w", instanceID, err)
		}
	}

	var updated *entity.WorkflowInstance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for itemID, qty := range prior {
			if err := s.inventory.AdjustQuantity(txCtx, itemID, int64(source), qty); err != nil {
				return fmt.Errorf("restore stock for item %d: %w", itemID, err)
			}
		}
		for itemID, qty := range picked {
			if err := s.inventory.AdjustQuantity(txCtx, itemID, int64(source), -qty); err != nil {
				return fmt.Errorf("deduct stock for item %d: %w", itemID, err)
			}
		}
		updated, err = s.engine.AdvanceStage(txCtx, instanceID, StageQualityCheck, "stock_picked", stamp(data, actorID), actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel abandons the transfer before anything is picked.
// Stage: stock_picking -> cancelled. Required: reason.
func (s *TransferService) Cancel(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageStockPicking); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCancelled, "transfer_cancelled", stamp(data, actorID), actorID)
}

// PerformQualityCheck inspects the picked goods. A failed check sends the
// batch back to picking.
// Stage: quality_check -> dispatch | stock_picking. Required: status.
func (s *TransferService) PerformQualityCheck(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageQualityCheck); err != nil {
		return nil, err
	}
	if err := requireFields(data, "status"); err != nil {
		return nil, err
	}
	status, _ := stringField(data, "status")

	var target domainwf.Stage
	var actionCode string
	switch status {
	case QualityCheckPassed:
		target, actionCode = StageDispatch, "quality_check_passed"
	case QualityCheckFailed:
		target, actionCode = StageStockPicking, "quality_check_failed"
	default:
		return nil, &domainwf.InvalidValueError{Field: "status", Value: status, Allowed: []string{QualityCheckPassed, QualityCheckFailed}}
	}

	return s.engine.AdvanceStage(ctx, instanceID, target, actionCode, stamp(data, actorID), actorID)
}

// Dispatch hands the goods to transport.
// Stage: dispatch -> in_transit. Required: dispatch_note.
func (s *TransferService) Dispatch(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageDispatch); err != nil {
		return nil, err
	}
	if err := requireFields(data, "dispatch_note"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageInTransit, "items_dispatched", stamp(data, actorID), actorID)
}

// ReceiveGoods records arrival at the destination.
// Stage: in_transit -> receiving_inspection. Required: received.
func (s *TransferService) ReceiveGoods(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageInTransit); err != nil {
		return nil, err
	}
	if _, err := quantityMap(data, "received"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageReceivingInspection, "goods_received", stamp(data, actorID), actorID)
}

// Inspect compares picked against received quantities. Any mismatch routes
// to discrepancy resolution, otherwise straight to stock posting.
// Stage: receiving_inspection -> stock_posting | discrepancy_resolution.
func (s *TransferService) Inspect(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageReceivingInspection)
	if err != nil {
		return nil, err
	}

	picked, err := quantityMap(instance.Payload.Fragment(StageQualityCheck), "picked")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no picked quantities on record: %w", instanceID, err)
	}
	received, err := quantityMap(instance.Payload.Fragment(StageReceivingInspection), "received")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no received quantities on record: %w", instanceID, err)
	}

	target := StageStockPosting
	actionCode := "inspection_passed"
	if !quantitiesEqual(picked, received) {
		target = StageDiscrepancyResolution
		actionCode = "discrepancy_found"
	}

	return s.engine.AdvanceStage(ctx, instanceID, target, actionCode, stamp(data, actorID), actorID)
}

// ResolveDiscrepancy records how a quantity mismatch was settled.
// Stage: discrepancy_resolution -> stock_posting. Required: resolution.
func (s *TransferService) ResolveDiscrepancy(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageDiscrepancyResolution); err != nil {
		return nil, err
	}
	if err := requireFields(data, "resolution"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageStockPosting, "discrepancy_resolved", stamp(data, actorID), actorID)
}

// PostStock adds the received quantities to the destination location and
// completes the workflow. Stock mutation and transition commit atomically.
// Stage: stock_posting -> completed.
func (s *TransferService) PostStock(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageStockPosting)
	if err != nil {
		return nil, err
	}

	received, err := quantityMap(instance.Payload.Fragment(StageReceivingInspection), "received")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no received quantities on record: %w", instanceID, err)
	}
	destination, ok := numField(instance.Payload.Fragment(appwf.InitialPayloadKey), "destination")
	if !ok {
		return nil, fmt.Errorf("instance %s has no destination location on record", instanceID)
	}

	var updated *entity.WorkflowInstance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for itemID, qty := range received {
			if err := s.inventory.AdjustQuantity(txCtx, itemID, int64(destination), qty); err != nil {
				return fmt.Errorf("post stock for item %d: %w", itemID, err)
			}
		}
		updated, err = s.engine.AdvanceStage(txCtx, instanceID, domainwf.StageCompleted, "stock_posted", stamp(data, actorID), actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transfer completed",
		zap.String("instance_id", instanceID),
		zap.Int64("transfer_id", instance.Reference.EntityID))
	return updated, nil
}
