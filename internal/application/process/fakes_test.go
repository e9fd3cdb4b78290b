package process

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"go.uber.org/zap"

	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// In-memory fakes shared by the process service tests.

type memInstanceRepo struct {
	instances map[string]*entity.WorkflowInstance
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{instances: make(map[string]*entity.WorkflowInstance)}
}

func cloneInstance(instance *entity.WorkflowInstance) *entity.WorkflowInstance {
	c := *instance
	c.Payload = entity.Payload{}
	for stage, frag := range instance.Payload {
		f := entity.Fragment{}
		for k, v := range frag {
			f[k] = v
		}
		c.Payload[stage] = f
	}
	return &c
}

func (m *memInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	m.instances[instance.ID] = cloneInstance(instance)
	return nil
}

func (m *memInstanceRepo) GetByID(ctx context.Context, id string) (*entity.WorkflowInstance, error) {
	instance, ok := m.instances[id]
	if !ok {
		return nil, nil
	}
	return cloneInstance(instance), nil
}

func (m *memInstanceRepo) GetByReference(ctx context.Context, ref entity.Reference) (*entity.WorkflowInstance, error) {
	for _, instance := range m.instances {
		if instance.Reference == ref {
			return cloneInstance(instance), nil
		}
	}
	return nil, nil
}

func (m *memInstanceRepo) UpdateStage(ctx context.Context, id string, stage domainwf.Stage,
	status domainwf.Status, payload entity.Payload, fromVersion int64) (bool, error) {
	instance, ok := m.instances[id]
	if !ok || instance.Version != fromVersion {
		return false, nil
	}
	instance.CurrentStage = stage
	instance.Status = status
	instance.Payload = payload
	instance.Version++
	return true, nil
}

func (m *memInstanceRepo) ListByStage(ctx context.Context, processType domainwf.ProcessType,
	stage domainwf.Stage, limit, offset int) ([]*entity.WorkflowInstance, error) {
	var out []*entity.WorkflowInstance
	for _, instance := range m.instances {
		if instance.ProcessType == processType && instance.CurrentStage == stage {
			out = append(out, cloneInstance(instance))
		}
	}
	return out, nil
}

func (m *memInstanceRepo) List(ctx context.Context, processType domainwf.ProcessType,
	limit, offset int) ([]*entity.WorkflowInstance, error) {
	var out []*entity.WorkflowInstance
	for _, instance := range m.instances {
		if instance.ProcessType == processType {
			out = append(out, cloneInstance(instance))
		}
	}
	return out, nil
}

type memHistoryRepo struct {
	entries []*entity.HistoryEntry
}

func (m *memHistoryRepo) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memHistoryRepo) GetByInstanceID(ctx context.Context, instanceID string) ([]*entity.HistoryEntry, error) {
	var out []*entity.HistoryEntry
	for _, e := range m.entries {
		if e.InstanceID == instanceID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

type passTxManager struct{}

func (passTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type locationKey struct {
	itemID     int64
	locationID int64
}

type memInventory struct {
	items      map[int64]*entity.InventoryItem
	quantities map[locationKey]int64
	disposed   map[int64]bool
}

func newMemInventory() *memInventory {
	return &memInventory{
		items:      make(map[int64]*entity.InventoryItem),
		quantities: make(map[locationKey]int64),
		disposed:   make(map[int64]bool),
	}
}

func (m *memInventory) addItem(item *entity.InventoryItem) {
	m.items[item.ID] = item
}

func (m *memInventory) setStock(itemID, locationID, qty int64) {
	m.quantities[locationKey{itemID, locationID}] = qty
}

func (m *memInventory) stock(itemID, locationID int64) int64 {
	return m.quantities[locationKey{itemID, locationID}]
}

func (m *memInventory) GetByID(ctx context.Context, id int64) (*entity.InventoryItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c := *item
	c.Disposed = m.disposed[id]
	return &c, nil
}

func (m *memInventory) AdjustQuantity(ctx context.Context, itemID, locationID, delta int64) error {
	key := locationKey{itemID, locationID}
	next := m.quantities[key] + delta
	if next < 0 {
		return fmt.Errorf("stock for item %d at location %d would go negative", itemID, locationID)
	}
	m.quantities[key] = next
	return nil
}

func (m *memInventory) SetQuantity(ctx context.Context, itemID, locationID, quantity int64) error {
	m.quantities[locationKey{itemID, locationID}] = quantity
	return nil
}

func (m *memInventory) MarkDisposed(ctx context.Context, itemID int64) error {
	m.disposed[itemID] = true
	return nil
}

type staticRoles struct {
	roles map[string]*entity.StaffRole
}

func (s *staticRoles) RoleFor(ctx context.Context, actorID string) (*entity.StaffRole, error) {
	return s.roles[actorID], nil
}

// testDeps bundles one fully wired engine plus fakes for a process test.
type testDeps struct {
	engine    appwf.Engine
	inventory *memInventory
	roles     *staticRoles
	tx        passTxManager
	instances *memInstanceRepo
	history   *memHistoryRepo
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()

	registry := appwf.NewRegistry()
	RegisterAll(registry)

	instances := newMemInstanceRepo()
	history := &memHistoryRepo{}
	engine := appwf.NewEngine(registry, instances, history, passTxManager{}, zap.NewNop())

	return &testDeps{
		engine:    engine,
		inventory: newMemInventory(),
		roles: &staticRoles{roles: map[string]*entity.StaffRole{
			"bursar":    {ActorID: "bursar", Role: "bursar", Ceiling: 50000},
			"principal": {ActorID: "principal", Role: "principal", Ceiling: 500000},
			"clerk":     {ActorID: "clerk", Role: "clerk", Ceiling: 1000},
		}},
		instances: instances,
		history:   history,
	}
}
