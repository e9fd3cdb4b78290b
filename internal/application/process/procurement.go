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

// ProcurementService drives the stock procurement process from purchase
// request through goods receipt to the final stock update.
type ProcurementService struct {
	engine    appwf.Engine
	inventory port.InventoryRepository
	roles     port.RoleLookup
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewProcurementService creates a new ProcurementService
func NewProcurementService(
	engine appwf.Engine,
	inventory port.InventoryRepository,
	roles port.RoleLookup,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *ProcurementService {
	return &ProcurementService{
		engine:    engine,
		inventory: inventory,
		roles:     roles,
		txManager: txManager,
		logger:    logger,
	}
}

// Start opens a procurement workflow for a purchase order.
// Required fields: order_id, items, location_id, estimated_cost.
func (s *ProcurementService) Start(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if err := requireFields(data, "order_id", "items", "location_id", "estimated_cost"); err != nil {
		return nil, err
	}
	orderID, err := numFieldErr(data, "order_id")
	if err != nil {
		return nil, err
	}
	if _, err := quantityMap(data, "items"); err != nil {
		return nil, err
	}

	ref := entity.Reference{EntityType: "purchase_order", EntityID: int64(orderID)}
	return s.engine.StartWorkflow(ctx, domainwf.ProcessStockProcurement, ref, initiatorID, data)
}

// VerifyBudget confirms funds exist on the named budget line.
// Stage: purchase_request -> budget_verification. Required: budget_line.
func (s *ProcurementService) VerifyBudget(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StagePurchaseRequest); err != nil {
		return nil, err
	}
	if err := requireFields(data, "budget_line"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageBudgetVerification, "budget_verified", stamp(data, actorID), actorID)
}

// RejectRequest declines the purchase request.
// Stage: purchase_request -> rejected. Required: reason.
func (s *ProcurementService) RejectRequest(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StagePurchaseRequest); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "request_rejected", stamp(data, actorID), actorID)
}

// SelectSupplier records the chosen supplier and their quote. The quoted
// total supersedes the estimate for the authority-gated approval.
// Stage: budget_verification -> supplier_selection. Required: supplier_id, quoted_total.
func (s *ProcurementService) SelectSupplier(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageBudgetVerification); err != nil {
		return nil, err
	}
	if err := requireFields(data, "supplier_id", "quoted_total"); err != nil {
		return nil, err
	}
	if _, err := numFieldErr(data, "quoted_total"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageSupplierSelection, "supplier_selected", stamp(data, actorID), actorID)
}

// RejectBudget declines the purchase on budget grounds.
// Stage: budget_verification -> rejected. Required: reason.
func (s *ProcurementService) RejectBudget(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageBudgetVerification); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "budget_rejected", stamp(data, actorID), actorID)
}

// SubmitForApproval forwards the quoted order to the approver.
// Stage: supplier_selection -> purchase_approval.
func (s *ProcurementService) SubmitForApproval(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageSupplierSelection); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StagePurchaseApproval, "submitted_for_approval", stamp(data, actorID), actorID)
}

// Cancel abandons the procurement before approval.
// Stage: supplier_selection -> cancelled. Required: reason.
func (s *ProcurementService) Cancel(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageSupplierSelection); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCancelled, "procurement_cancelled", stamp(data, actorID), actorID)
}

// Approve authorizes the order. The actor's spending ceiling must cover the
// quoted total from the supplier selection stage.
// Stage: purchase_approval -> order_placement.
func (s *ProcurementService) Approve(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StagePurchaseApproval)
	if err != nil {
		return nil, err
	}

	selection := instance.Payload.Fragment(StageSupplierSelection)
	total, ok := numField(selection, "quoted_total")
	if !ok {
		return nil, fmt.Errorf("instance %s has no quoted total on record", instanceID)
	}

	role, err := checkAuthority(ctx, s.roles, actorID, total)
	if err != nil {
		return nil, err
	}

	frag := stamp(data, actorID)
	frag["approver_role"] = role.Role
	frag["approved_total"] = total
	return s.engine.AdvanceStage(ctx, instanceID, StageOrderPlacement, "purchase_approved", frag, actorID)
}

// Reject declines the purchase at approval.
// Stage: purchase_approval -> rejected. Required: reason.
func (s *ProcurementService) Reject(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StagePurchaseApproval); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "purchase_rejected", stamp(data, actorID), actorID)
}

// PlaceOrder sends the order to the supplier.
// Stage: order_placement -> goods_receiving. Required: po_number.
func (s *ProcurementService) PlaceOrder(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageOrderPlacement); err != nil {
		return nil, err
	}
	if err := requireFields(data, "po_number"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageGoodsReceiving, "order_placed", stamp(data, actorID), actorID)
}

// ReceiveGoods records the delivered quantities.
// Stage: goods_receiving -> invoice_matching. Required: received.
func (s *ProcurementService) ReceiveGoods(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageGoodsReceiving); err != nil {
		return nil, err
	}
	if _, err := quantityMap(data, "received"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageInvoiceMatching, "goods_received", stamp(data, actorID), actorID)
}

// MatchInvoice compares invoiced against received quantities. A mismatch
// loops back to goods receiving for recount.
// Stage: invoice_matching -> payment_processing | goods_receiving.
// Required: invoice_no, invoiced.
func (s *ProcurementService) MatchInvoice(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageInvoiceMatching)
	if err != nil {
		return nil, err
	}
	if err := requireFields(data, "invoice_no", "invoiced"); err != nil {
		return nil, err
	}
	invoiced, err := quantityMap(data, "invoiced")
	if err != nil {
		return nil, err
	}
	received, err := quantityMap(instance.Payload.Fragment(StageInvoiceMatching), "received")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no received quantities on record: %w", instanceID, err)
	}

	target := StagePaymentProcessing
	actionCode := "invoice_matched"
	if !quantitiesEqual(invoiced, received) {
		target = StageGoodsReceiving
		actionCode = "invoice_mismatch"
	}

	return s.engine.AdvanceStage(ctx, instanceID, target, actionCode, stamp(data, actorID), actorID)
}

// ProcessPayment settles the matched invoice.
// Stage: payment_processing -> stock_update. Required: payment_ref.
func (s *ProcurementService) ProcessPayment(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StagePaymentProcessing); err != nil {
		return nil, err
	}
	if err := requireFields(data, "payment_ref"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageStockUpdate, "payment_processed", stamp(data, actorID), actorID)
}

// UpdateStock increments inventory by the received quantities and completes
// the workflow. The stock mutation and the transition commit atomically.
// Stage: stock_update -> completed.
func (s *ProcurementService) UpdateStock(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageStockUpdate)
	if err != nil {
		return nil, err
	}

	received, err := quantityMap(instance.Payload.Fragment(StageInvoiceMatching), "received")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no received quantities on record: %w", instanceID, err)
	}
	locationID, ok := numField(instance.Payload.Fragment(appwf.InitialPayloadKey), "location_id")
	if !ok {
		return nil, fmt.Errorf("instance %s has no destination location on record", instanceID)
	}

	var updated *entity.WorkflowInstance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for itemID, qty := range received {
			if err := s.inventory.AdjustQuantity(txCtx, itemID, int64(locationID), qty); err != nil {
				return fmt.Errorf("adjust stock for item %d: %w", itemID, err)
			}
		}
		updated, err = s.engine.AdvanceStage(txCtx, instanceID, domainwf.StageCompleted, "stock_updated", stamp(data, actorID), actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Procurement completed",
		zap.String("instance_id", instanceID),
		zap.Int64("order_id", instance.Reference.EntityID))
	return updated, nil
}

// quantitiesEqual reports whether two item-to-quantity mappings agree on
// every item.
func quantitiesEqual(a, b map[int64]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for id, qty := range a {
		if b[id] != qty {
			return false
		}
	}
	return true
}
