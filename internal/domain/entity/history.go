package entity

import (
	"time"

	"github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// HistoryEntry is one record in the append-only transition ledger of a
// workflow instance. Entries are never updated or deleted; replaying them in
// OccurredAt order reproduces the instance's stage sequence.
type HistoryEntry struct {
	ID          string         `json:"id"`
	InstanceID  string         `json:"instance_id"`
	FromStage   workflow.Stage `json:"from_stage"` // empty for the creation entry
	ToStage     workflow.Stage `json:"to_stage"`
	ActionCode  string         `json:"action_code"`
	PerformedBy string         `json:"performed_by"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
