package process

import (
	"context"
	"testing"

	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

type edge struct {
	from domainwf.Stage
	to   domainwf.Stage
}

func assertEdges(t *testing.T, graph *domainwf.Graph, start domainwf.Stage, edges []edge) {
	t.Helper()

	if graph.Start() != start {
		t.Fatalf("start stage = %q, want %q", graph.Start(), start)
	}

	allowed := make(map[edge]bool, len(edges))
	for _, e := range edges {
		allowed[e] = true
		if !graph.Allows(e.from, e.to) {
			t.Errorf("edge %s -> %s should be allowed", e.from, e.to)
		}
	}

	// Every pair not in the declared edge set must be refused.
	stages := graph.Stages()
	for _, from := range stages {
		for _, to := range stages {
			if allowed[edge{from, to}] {
				continue
			}
			if graph.Allows(from, to) {
				t.Errorf("edge %s -> %s should not be allowed", from, to)
			}
		}
	}
}

func TestDisposalGraphEdges(t *testing.T) {
	assertEdges(t, DisposalGraph(), StageDisposalRequest, []edge{
		{StageDisposalRequest, StageConditionAssessment},
		{StageDisposalRequest, domainwf.StageRejected},
		{StageConditionAssessment, StageValuation},
		{StageConditionAssessment, StageDisposalRequest},
		{StageValuation, StageDisposalApproval},
		{StageValuation, domainwf.StageCancelled},
		{StageDisposalApproval, StageDisposalExecution},
		{StageDisposalApproval, domainwf.StageRejected},
		{StageDisposalExecution, StageProceedsRecording},
		{StageDisposalExecution, StageWriteOffProcessing},
		{StageProceedsRecording, StageInventoryRemoval},
		{StageWriteOffProcessing, StageInventoryRemoval},
		{StageInventoryRemoval, domainwf.StageCompleted},
	})
}

func TestProcurementGraphEdges(t *testing.T) {
	assertEdges(t, ProcurementGraph(), StagePurchaseRequest, []edge{
		{StagePurchaseRequest, StageBudgetVerification},
		{StagePurchaseRequest, domainwf.StageRejected},
		{StageBudgetVerification, StageSupplierSelection},
		{StageBudgetVerification, domainwf.StageRejected},
		{StageSupplierSelection, StagePurchaseApproval},
		{StageSupplierSelection, domainwf.StageCancelled},
		{StagePurchaseApproval, StageOrderPlacement},
		{StagePurchaseApproval, domainwf.StageRejected},
		{StageOrderPlacement, StageGoodsReceiving},
		{StageGoodsReceiving, StageInvoiceMatching},
		{StageInvoiceMatching, StagePaymentProcessing},
		{StageInvoiceMatching, StageGoodsReceiving},
		{StagePaymentProcessing, StageStockUpdate},
		{StageStockUpdate, domainwf.StageCompleted},
	})
}

func TestTransferGraphEdges(t *testing.T) {
	assertEdges(t, TransferGraph(), StageTransferRequest, []edge{
		{StageTransferRequest, StageStockPicking},
		{StageTransferRequest, domainwf.StageRejected},
		{StageStockPicking, StageQualityCheck},
		{StageStockPicking, domainwf.StageCancelled},
		{StageQualityCheck, StageDispatch},
		{StageQualityCheck, StageStockPicking},
		{StageDispatch, StageInTransit},
		{StageInTransit, StageReceivingInspection},
		{StageReceivingInspection, StageStockPosting},
		{StageReceivingInspection, StageDiscrepancyResolution},
		{StageDiscrepancyResolution, StageStockPosting},
		{StageStockPosting, domainwf.StageCompleted},
	})
}

func TestAuditGraphEdges(t *testing.T) {
	assertEdges(t, AuditGraph(), StageAuditPlanning, []edge{
		{StageAuditPlanning, StageCountExecution},
		{StageAuditPlanning, domainwf.StageCancelled},
		{StageCountExecution, StageVarianceAnalysis},
		{StageVarianceAnalysis, StageVarianceInvestigation},
		{StageVarianceAnalysis, StageAdjustmentProposal},
		{StageVarianceInvestigation, StageAdjustmentProposal},
		{StageAdjustmentProposal, StageAdjustmentApproval},
		{StageAdjustmentApproval, StageStockAdjustment},
		{StageAdjustmentApproval, domainwf.StageRejected},
		{StageStockAdjustment, domainwf.StageCompleted},
	})
}

func TestTermScheduleGraphEdges(t *testing.T) {
	assertEdges(t, TermScheduleGraph(), StageTermDraft, []edge{
		{StageTermDraft, StageHolidayMapping},
		{StageTermDraft, domainwf.StageCancelled},
		{StageHolidayMapping, StageConflictReview},
		{StageConflictReview, StageCalendarApproval},
		{StageConflictReview, StageHolidayMapping},
		{StageCalendarApproval, StageCalendarPublication},
		{StageCalendarApproval, domainwf.StageRejected},
		{StageCalendarPublication, domainwf.StageCompleted},
	})
}

func TestTimetableGraphEdges(t *testing.T) {
	assertEdges(t, TimetableGraph(), StageTimetableDraft, []edge{
		{StageTimetableDraft, StageSlotAllocation},
		{StageTimetableDraft, domainwf.StageCancelled},
		{StageSlotAllocation, StageClashDetection},
		{StageClashDetection, StageTeacherConfirmation},
		{StageClashDetection, StageSlotAllocation},
		{StageTeacherConfirmation, StageTimetableApproval},
		{StageTeacherConfirmation, StageSlotAllocation},
		{StageTimetableApproval, StageTimetablePublication},
		{StageTimetableApproval, domainwf.StageRejected},
		{StageTimetablePublication, domainwf.StageCompleted},
	})
}

func TestRegisterAllCoversEveryProcess(t *testing.T) {
	deps := newTestDeps(t)

	for _, processType := range []domainwf.ProcessType{
		domainwf.ProcessAssetDisposal,
		domainwf.ProcessStockProcurement,
		domainwf.ProcessStockTransfer,
		domainwf.ProcessStockAudit,
		domainwf.ProcessTermScheduling,
		domainwf.ProcessClassTimetabling,
	} {
		if _, err := deps.engine.ListByStage(context.Background(), processType, "nowhere", 10, 0); err != nil {
			t.Errorf("process %s not registered: %v", processType, err)
		}
	}
}
