package process

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/application/port"
	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// DefaultVarianceThreshold is the variance percentage above which a count
// triggers an investigation instead of going straight to adjustment.
const DefaultVarianceThreshold = 5.0

// AuditService drives the stock audit process: planned counts, variance
// analysis and the approved stock adjustment.
type AuditService struct {
	engine    appwf.Engine
	inventory port.InventoryRepository
	txManager port.TransactionManager
	threshold float64
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService. A non-positive threshold falls
// back to DefaultVarianceThreshold.
func NewAuditService(
	engine appwf.Engine,
	inventory port.InventoryRepository,
	txManager port.TransactionManager,
	threshold float64,
	logger *zap.Logger,
) *AuditService {
	if threshold <= 0 {
		threshold = DefaultVarianceThreshold
	}
	return &AuditService{
		engine:    engine,
		inventory: inventory,
		txManager: txManager,
		threshold: threshold,
		logger:    logger,
	}
}

// Start opens an audit workflow for a location.
// Required fields: audit_id, location_id, audit_type.
func (s *AuditService) Start(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if err := requireFields(data, "audit_id", "location_id", "audit_type"); err != nil {
		return nil, err
	}
	auditID, err := numFieldErr(data, "audit_id")
	if err != nil {
		return nil, err
	}

	ref := entity.Reference{EntityType: "audit_record", EntityID: int64(auditID)}
	return s.engine.StartWorkflow(ctx, domainwf.ProcessStockAudit, ref, initiatorID, data)
}

// BeginCount releases the planned audit for counting.
// Stage: audit_planning -> count_execution. Required: count_sheet_ref.
func (s *AuditService) BeginCount(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageAuditPlanning); err != nil {
		return nil, err
	}
	if err := requireFields(data, "count_sheet_ref"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageCountExecution, "count_started", stamp(data, actorID), actorID)
}

// Cancel abandons the audit at planning.
// Stage: audit_planning -> cancelled. Required: reason.
func (s *AuditService) Cancel(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageAuditPlanning); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageCancelled, "audit_cancelled", stamp(data, actorID), actorID)
}

// countLine is one counted item parsed from the caller-supplied counts.
type countLine struct {
	ItemID      int64
	SystemQty   int64
	PhysicalQty int64
}

// parseCounts reads the counts list: each element carries item_id,
// system_qty and physical_qty.
func parseCounts(data entity.Fragment, key string) ([]countLine, error) {
	raw, ok := data[key]
	if !ok {
		return nil, &domainwf.MissingFieldsError{Fields: []string{key}}
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &domainwf.InvalidValueError{Field: key, Value: fmt.Sprint(raw),
			Allowed: []string{"list of counted items"}}
	}
	lines := make([]countLine, 0, len(list))
	for i, el := range list {
		m, ok := el.(map[string]interface{})
		if !ok {
			return nil, &domainwf.InvalidValueError{Field: fmt.Sprintf("%s[%d]", key, i),
				Value: fmt.Sprint(el), Allowed: []string{"counted item object"}}
		}
		frag := entity.Fragment(m)
		itemID, ok1 := numField(frag, "item_id")
		systemQty, ok2 := numField(frag, "system_qty")
		physicalQty, ok3 := numField(frag, "physical_qty")
		if !ok1 || !ok2 || !ok3 {
			return nil, &domainwf.InvalidValueError{Field: fmt.Sprintf("%s[%d]", key, i),
				Value: fmt.Sprint(el), Allowed: []string{"numeric item_id, system_qty and physical_qty"}}
		}
		lines = append(lines, countLine{
			ItemID:      int64(itemID),
			SystemQty:   int64(systemQty),
			PhysicalQty: int64(physicalQty),
		})
	}
	if len(lines) == 0 {
		return nil, &domainwf.MissingFieldsError{Fields: []string{key}}
	}
	return lines, nil
}

// variancePct computes (physical - system) / system * 100. A count against
// a zero system quantity is an unconditional full variance.
func variancePct(line countLine) float64 {
	if line.SystemQty == 0 {
		if line.PhysicalQty == 0 {
			return 0
		}
		return 100
	}
	return float64(line.PhysicalQty-line.SystemQty) / float64(line.SystemQty) * 100
}

// RecordCounts stores the physical counts taken on the floor.
// Stage: count_execution -> variance_analysis. Required: counts.
func (s *AuditService) RecordCounts(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageCountExecution); err != nil {
		return nil, err
	}
	if _, err := parseCounts(data, "counts"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageVarianceAnalysis, "counts_recorded", stamp(data, actorID), actorID)
}

// AnalyzeVariances computes the variance percentage for every counted item.
// Any item beyond the threshold routes the audit to investigation, otherwise
// it proceeds straight to the adjustment proposal. An optional numeric
// threshold field overrides the default.
// Stage: variance_analysis -> variance_investigation | adjustment_proposal.
func (s *AuditService) AnalyzeVariances(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageVarianceAnalysis)
	if err != nil {
		return nil, err
	}

	counts, err := parseCounts(instance.Payload.Fragment(StageVarianceAnalysis), "counts")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no counts on record: %w", instanceID, err)
	}

	threshold := s.threshold
	if t, ok := numField(data, "threshold"); ok {
		if t <= 0 {
			return nil, &domainwf.InvalidValueError{Field: "threshold",
				Value: fmt.Sprintf("%g", t), Allowed: []string{"positive number"}}
		}
		threshold = t
	}

	exceeded := false
	variances := make([]interface{}, 0, len(counts))
	for _, line := range counts {
		pct := variancePct(line)
		if math.Abs(pct) > threshold {
			exceeded = true
		}
		variances = append(variances, map[string]interface{}{
			"item_id":      line.ItemID,
			"system_qty":   line.SystemQty,
			"physical_qty": line.PhysicalQty,
			"variance_pct": pct,
		})
	}

	target := StageAdjustmentProposal
	actionCode := "variances_within_threshold"
	if exceeded {
		target = StageVarianceInvestigation
		actionCode = "variances_exceed_threshold"
	}

	frag := stamp(data, actorID)
	frag["threshold"] = threshold
	frag["variances"] = variances
	return s.engine.AdvanceStage(ctx, instanceID, target, actionCode, frag, actorID)
}

// CloseInvestigation records the findings for out-of-threshold variances.
// Stage: variance_investigation -> adjustment_proposal. Required: findings.
func (s *AuditService) CloseInvestigation(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageVarianceInvestigation); err != nil {
		return nil, err
	}
	if err := requireFields(data, "findings"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageAdjustmentProposal, "investigation_closed", stamp(data, actorID), actorID)
}

// ProposeAdjustments submits the correction for approval.
// Stage: adjustment_proposal -> adjustment_approval.
func (s *AuditService) ProposeAdjustments(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageAdjustmentProposal); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageAdjustmentApproval, "adjustments_proposed", stamp(data, actorID), actorID)
}

// ApproveAdjustments authorizes the stock correction.
// Stage: adjustment_approval -> stock_adjustment.
func (s *AuditService) ApproveAdjustments(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageAdjustmentApproval); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, StageStockAdjustment, "adjustments_approved", stamp(data, actorID), actorID)
}

// RejectAdjustments declines the proposed correction.
// Stage: adjustment_approval -> rejected. Required: reason.
func (s *AuditService) RejectAdjustments(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	if _, err := loadAt(ctx, s.engine, instanceID, StageAdjustmentApproval); err != nil {
		return nil, err
	}
	if err := requireFields(data, "reason"); err != nil {
		return nil, err
	}
	return s.engine.AdvanceStage(ctx, instanceID, domainwf.StageRejected, "adjustments_rejected", stamp(data, actorID), actorID)
}

// ApplyAdjustments sets system quantities to the physical counts and
// completes the audit. Stock mutation and transition commit atomically.
// Stage: stock_adjustment -> completed.
func (s *AuditService) ApplyAdjustments(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error) {
	instance, err := loadAt(ctx, s.engine, instanceID, StageStockAdjustment)
	if err != nil {
		return nil, err
	}

	counts, err := parseCounts(instance.Payload.Fragment(StageVarianceAnalysis), "counts")
	if err != nil {
		return nil, fmt.Errorf("instance %s has no counts on record: %w", instanceID, err)
	}
	locationID, ok := numField(instance.Payload.Fragment(appwf.InitialPayloadKey), "location_id")
	if !ok {
		return nil, fmt.Errorf("instance %s has no location on record", instanceID)
	}

	var updated *entity.WorkflowInstance
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, line := range counts {
			if err := s.inventory.SetQuantity(txCtx, line.ItemID, int64(locationID), line.PhysicalQty); err != nil {
				return fmt.Errorf("adjust item %d: %w", line.ItemID, err)
			}
		}
		updated, err = s.engine.AdvanceStage(txCtx, instanceID, domainwf.StageCompleted, "adjustments_applied", stamp(data, actorID), actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Audit completed",
		zap.String("instance_id", instanceID),
		zap.Int64("audit_id", instance.Reference.EntityID))
	return updated, nil
}
