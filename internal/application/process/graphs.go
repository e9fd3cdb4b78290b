package process

import (
	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// Stage names per process. Terminal stages (completed, rejected, cancelled)
// are shared and defined in the domain package.
const (
	// asset_disposal
	StageDisposalRequest     domainwf.Stage = "disposal_request"
	StageConditionAssessment domainwf.Stage = "condition_assessment"
	StageValuation           domainwf.Stage = "valuation"
	StageDisposalApproval    domainwf.Stage = "disposal_approval"
	StageDisposalExecution   domainwf.Stage = "disposal_execution"
	StageProceedsRecording   domainwf.Stage = "proceeds_recording"
	StageWriteOffProcessing  domainwf.Stage = "write_off_processing"
	StageInventoryRemoval    domainwf.Stage = "inventory_removal"

	// stock_procurement
	StagePurchaseRequest    domainwf.Stage = "purchase_request"
	StageBudgetVerification domainwf.Stage = "budget_verification"
	StageSupplierSelection  domainwf.Stage = "supplier_selection"
	StagePurchaseApproval   domainwf.Stage = "purchase_approval"
	StageOrderPlacement     domainwf.Stage = "order_placement"
	StageGoodsReceiving     domainwf.Stage = "goods_receiving"
	StageInvoiceMatching    domainwf.Stage = "invoice_matching"
	StagePaymentProcessing  domainwf.Stage = "payment_processing"
	StageStockUpdate        domainwf.Stage = "stock_update"

	// stock_transfer
	StageTransferRequest       domainwf.Stage = "transfer_request"
	StageStockPicking          domainwf.Stage = "stock_picking"
	StageQualityCheck          domainwf.Stage = "quality_check"
	StageDispatch              domainwf.Stage = "dispatch"
	StageInTransit             domainwf.Stage = "in_transit"
	StageReceivingInspection   domainwf.Stage = "receiving_inspection"
	StageDiscrepancyResolution domainwf.Stage = "discrepancy_resolution"
	StageStockPosting          domainwf.Stage = "stock_posting"

	// stock_audit
	StageAuditPlanning         domainwf.Stage = "audit_planning"
	StageCountExecution        domainwf.Stage = "count_execution"
	StageVarianceAnalysis      domainwf.Stage = "variance_analysis"
	StageVarianceInvestigation domainwf.Stage = "variance_investigation"
	StageAdjustmentProposal    domainwf.Stage = "adjustment_proposal"
	StageAdjustmentApproval    domainwf.Stage = "adjustment_approval"
	StageStockAdjustment       domainwf.Stage = "stock_adjustment"

	// term_scheduling
	StageTermDraft           domainwf.Stage = "term_draft"
	StageHolidayMapping      domainwf.Stage = "holiday_mapping"
	StageConflictReview      domainwf.Stage = "conflict_review"
	StageCalendarApproval    domainwf.Stage = "calendar_approval"
	StageCalendarPublication domainwf.Stage = "calendar_publication"

	// class_timetabling
	StageTimetableDraft       domainwf.Stage = "timetable_draft"
	StageSlotAllocation       domainwf.Stage = "slot_allocation"
	StageClashDetection       domainwf.Stage = "clash_detection"
	StageTeacherConfirmation  domainwf.Stage = "teacher_confirmation"
	StageTimetableApproval    domainwf.Stage = "timetable_approval"
	StageTimetablePublication domainwf.Stage = "timetable_publication"
)

// DisposalGraph is the transition graph for the asset disposal process.
func DisposalGraph() *domainwf.Graph {
	return domainwf.MustNewGraph(domainwf.ProcessAssetDisposal, StageDisposalRequest, map[domainwf.Stage][]domainwf.Stage{
		StageDisposalRequest:     {StageConditionAssessment, domainwf.StageRejected},
		StageConditionAssessment: {StageValuation, StageDisposalRequest},
		StageValuation:           {StageDisposalApproval, domainwf.StageCancelled},
		StageDisposalApproval:    {StageDisposalExecution, domainwf.StageRejected},
		StageDisposalExecution:   {StageProceedsRecording, StageWriteOffProcessing},
		StageProceedsRecording:   {StageInventoryRemoval},
		StageWriteOffProcessing:  {StageInventoryRemoval},
		StageInventoryRemoval:    {domainwf.StageCompleted},
	})
}

// ProcurementGraph is the transition graph for the stock procurement process.
func ProcurementGraph() *domainwf.Graph {
	return domainwf.MustNewGraph(domainwf.ProcessStockProcurement, StagePurchaseRequest, map[domainwf.Stage][]domainwf.Stage{
		StagePurchaseRequest:    {StageBudgetVerification, domainwf.StageRejected},
		StageBudgetVerification: {StageSupplierSelection, domainwf.StageRejected},
		StageSupplierSelection:  {StagePurchaseApproval, domainwf.StageCancelled},
		StagePurchaseApproval:   {StageOrderPlacement, domainwf.StageRejected},
		StageOrderPlacement:     {StageGoodsReceiving},
		StageGoodsReceiving:     {StageInvoiceMatching},
		StageInvoiceMatching:    {StagePaymentProcessing, StageGoodsReceiving},
		StagePaymentProcessing:  {StageStockUpdate},
		StageStockUpdate:        {domainwf.StageCompleted},
	})
}

// TransferGraph is the transition graph for the stock transfer process.
func TransferGraph() *domainwf.Graph {
	return domainwf.MustNewGraph(domainwf.ProcessStockTransfer, StageTransferRequest, map[domainwf.Stage][]domainwf.Stage{
		StageTransferRequest:       {StageStockPicking, domainwf.StageRejected},
		StageStockPicking:          {StageQualityCheck, domainwf.StageCancelled},
		StageQualityCheck:          {StageDispatch, StageStockPicking},
		StageDispatch:              {StageInTransit},
		StageInTransit:             {StageReceivingInspection},
		StageReceivingInspection:   {StageStockPosting, StageDiscrepancyResolution},
		StageDiscrepancyResolution: {StageStockPosting},
		StageStockPosting:          {domainwf.StageCompleted},
	})
}

// AuditGraph is the transition graph for the stock audit process.
func AuditGraph() *domainwf.Graph {
	return domainwf.MustNewGraph(domainwf.ProcessStockAudit, StageAuditPlanning, map[domainwf.Stage][]domainwf.Stage{
		StageAuditPlanning:         {StageCountExecution, domainwf.StageCancelled},
		StageCountExecution:        {StageVarianceAnalysis},
		StageVarianceAnalysis:      {StageVarianceInvestigation, StageAdjustmentProposal},
		StageVarianceInvestigation: {StageAdjustmentProposal},
		StageAdjustmentProposal:    {StageAdjustmentApproval},
		StageAdjustmentApproval:    {StageStockAdjustment, domainwf.StageRejected},
		StageStockAdjustment:       {domainwf.StageCompleted},
	})
}

// TermScheduleGraph is the transition graph for term and holiday scheduling.
func TermScheduleGraph() *domainwf.Graph {
	return domainwf.MustNewGraph(domainwf.ProcessTermScheduling, StageTermDraft, map[domainwf.Stage][]domainwf.Stage{
		StageTermDraft:           {StageHolidayMapping, domainwf.StageCancelled},
		StageHolidayMapping:      {StageConflictReview},
		StageConflictReview:      {StageCalendarApproval, StageHolidayMapping},
		StageCalendarApproval:    {StageCalendarPublication, domainwf.StageRejected},
		StageCalendarPublication: {domainwf.StageCompleted},
	})
}

// TimetableGraph is the transition graph for class timetabling.
func TimetableGraph() *domainwf.Graph {
	return domainwf.MustNewGraph(domainwf.ProcessClassTimetabling, StageTimetableDraft, map[domainwf.Stage][]domainwf.Stage{
		StageTimetableDraft:       {StageSlotAllocation, domainwf.StageCancelled},
		StageSlotAllocation:       {StageClashDetection},
		StageClashDetection:       {StageTeacherConfirmation, StageSlotAllocation},
		StageTeacherConfirmation:  {StageTimetableApproval, StageSlotAllocation},
		StageTimetableApproval:    {StageTimetablePublication, domainwf.StageRejected},
		StageTimetablePublication: {domainwf.StageCompleted},
	})
}

// RegisterAll registers every process graph with the engine registry.
func RegisterAll(registry *appwf.Registry) {
	registry.MustRegister(DisposalGraph())
	registry.MustRegister(ProcurementGraph())
	registry.MustRegister(TransferGraph())
	registry.MustRegister(AuditGraph())
	registry.MustRegister(TermScheduleGraph())
	registry.MustRegister(TimetableGraph())
}
