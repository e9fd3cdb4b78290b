package entity

import (
	"time"

	"github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// Fragment is the structured data a single stage contributes to an
// instance's accumulated payload.
type Fragment map[string]interface{}

// Payload maps stage names to the fragment each stage contributed. Keys are
// only ever added; the history ledger is the authoritative record of the
// order in which they arrived.
type Payload map[string]Fragment

// Merge folds a fragment into the payload under the given stage name. A
// stage revisited through a rework loop merges into its earlier fragment
// key by key; existing stage keys are never removed.
func (p Payload) Merge(stage workflow.Stage, frag Fragment) {
	if len(frag) == 0 {
		return
	}
	existing, ok := p[stage.String()]
	if !ok {
		existing = make(Fragment, len(frag))
		p[stage.String()] = existing
	}
	for k, v := range frag {
		existing[k] = v
	}
}

// Fragment returns the fragment contributed by the given stage, or nil.
func (p Payload) Fragment(stage workflow.Stage) Fragment {
	return p[stage.String()]
}

// Reference identifies the business object a workflow instance is driving.
type Reference struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
}

// WorkflowInstance represents one running occurrence of a process type.
// CurrentStage is written only by the engine's guarded transition; Version
// backs the optimistic concurrency check that serializes concurrent advances.
type WorkflowInstance struct {
	ID           string               `json:"id"`
	ProcessType  workflow.ProcessType `json:"process_type"`
	Reference    Reference            `json:"reference"`
	CurrentStage workflow.Stage       `json:"current_stage"`
	Status       workflow.Status      `json:"status"`
	Payload      Payload              `json:"payload"`
	Version      int64                `json:"version"`
	CreatedBy    string               `json:"created_by"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}
