package entity

import "time"

// InventoryItem is a stocked asset or consumable held at a location. The
// workflow engine treats the inventory store as an external collaborator;
// stage action handlers mutate it inside the same transaction as the
// stage change.
type InventoryItem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CategoryID int64     `json:"category_id"`
	LocationID int64     `json:"location_id"`
	Quantity   int64     `json:"quantity"`
	UnitValue  float64   `json:"unit_value"`
	Disposed   bool      `json:"disposed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StaffRole maps a staff member to an approval role and its spending
// ceiling. Used by authority-gated approval stages.
type StaffRole struct {
	ActorID   string    `json:"actor_id"`
	Role      string    `json:"role"`
	Ceiling   float64   `json:"ceiling"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActionLogEntry is a generic audit log record written by the request layer.
// Unlike workflow history it is advisory and never part of the atomic
// transition unit.
type ActionLogEntry struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actor_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}
