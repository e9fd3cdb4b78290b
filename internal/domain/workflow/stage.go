package workflow

// ProcessType identifies one registered workflow kind, e.g. asset_disposal.
type ProcessType string

const (
	ProcessAssetDisposal    ProcessType = "asset_disposal"
	ProcessStockProcurement ProcessType = "stock_procurement"
	ProcessStockTransfer    ProcessType = "stock_transfer"
	ProcessStockAudit       ProcessType = "stock_audit"
	ProcessTermScheduling   ProcessType = "term_scheduling"
	ProcessClassTimetabling ProcessType = "class_timetabling"
)

// String returns the string representation of the process type.
func (p ProcessType) String() string {
	return string(p)
}

// Stage represents a named state in a process's transition graph.
type Stage string

// Terminal stages shared by every process. A graph may only terminate in one
// of these; the instance status is derived from which one was reached.
const (
	StageCompleted Stage = "completed"
	StageRejected  Stage = "rejected"
	StageCancelled Stage = "cancelled"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Status represents the lifecycle status of a workflow instance.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status ends the instance's active lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

var terminalOutcomes = map[Stage]Status{
	StageCompleted: StatusCompleted,
	StageRejected:  StatusRejected,
	StageCancelled: StatusCancelled,
}
