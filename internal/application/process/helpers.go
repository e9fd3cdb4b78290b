package process

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jmwangi/schoolflow/internal/application/port"
	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

// loadAt loads the instance and verifies it sits at the stage the handler
// drives. This is cheap local validation; the engine re-checks the actual
// transition inside the transaction.
func loadAt(ctx context.Context, engine appwf.Engine, id string, expected domainwf.Stage) (*entity.WorkflowInstance, error) {
	instance, err := engine.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.CurrentStage != expected {
		return nil, &domainwf.WrongStageError{Expected: expected, Actual: instance.CurrentStage}
	}
	return instance, nil
}

// requireFields collects every absent field before failing, so the caller
// can fix the whole request in one round trip. A field is absent when the
// key is missing, nil, or an empty string.
func requireFields(data entity.Fragment, fields ...string) error {
	var missing []string
	for _, f := range fields {
		v, ok := data[f]
		if !ok || v == nil {
			missing = append(missing, f)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &domainwf.MissingFieldsError{Fields: missing}
	}
	return nil
}

// numValue coerces the numeric representations JSON decoding produces.
func numValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// numField reads a numeric field from a fragment.
func numField(data entity.Fragment, key string) (float64, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	return numValue(v)
}

// numFieldErr reads a numeric field, reporting a typed client fault when the
// value is present but not a number.
func numFieldErr(data entity.Fragment, key string) (float64, error) {
	n, ok := numField(data, key)
	if !ok {
		return 0, &domainwf.InvalidValueError{Field: key, Value: fmt.Sprint(data[key])}
	}
	return n, nil
}

// stringField reads a string field from a fragment.
func stringField(data entity.Fragment, key string) (string, bool) {
	v, ok := data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// quantityMap reads an item-id -> quantity mapping from a fragment. JSON
// object keys arrive as strings; values as float64.
func quantityMap(data entity.Fragment, key string) (map[int64]int64, error) {
	raw, ok := data[key]
	if !ok {
		return nil, &domainwf.MissingFieldsError{Fields: []string{key}}
	}
	var quantities map[int64]int64
	switch m := raw.(type) {
	case map[int64]int64:
		quantities = make(map[int64]int64, len(m))
		for id, qty := range m {
			quantities[id] = qty
		}
	case map[string]interface{}:
		quantities = make(map[int64]int64, len(m))
		for idStr, v := range m {
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, &domainwf.InvalidValueError{Field: key, Value: idStr}
			}
			qty, ok := numValue(v)
			if !ok {
				return nil, &domainwf.InvalidValueError{Field: key, Value: fmt.Sprint(v)}
			}
			quantities[id] = int64(qty)
		}
	default:
		return nil, &domainwf.InvalidValueError{Field: key, Value: fmt.Sprint(raw)}
	}
	return quantities, nil
}

// checkAuthority resolves the actor's role and fails when the approval value
// exceeds their spending ceiling. An actor without any role has ceiling zero.
func checkAuthority(ctx context.Context, roles port.RoleLookup, actorID string, required float64) (*entity.StaffRole, error) {
	role, err := roles.RoleFor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("role lookup for %s: %w", actorID, err)
	}
	if role == nil {
		return nil, &domainwf.InsufficientAuthorityError{
			ActorID:  actorID,
			Role:     "none",
			Required: required,
			Ceiling:  0,
		}
	}
	if required > role.Ceiling {
		return nil, &domainwf.InsufficientAuthorityError{
			ActorID:  actorID,
			Role:     role.Role,
			Required: required,
			Ceiling:  role.Ceiling,
		}
	}
	return role, nil
}

// stamp annotates a stage fragment with who acted and when.
func stamp(frag entity.Fragment, actorID string) entity.Fragment {
	if frag == nil {
		frag = entity.Fragment{}
	}
	frag["performed_by"] = actorID
	frag["performed_at"] = time.Now().UTC().Format(time.RFC3339)
	return frag
}
