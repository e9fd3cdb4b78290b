package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
)

func newProcurementFixture(t *testing.T) (*ProcurementService, *testDeps) {
	deps := newTestDeps(t)
	svc := NewProcurementService(deps.engine, deps.inventory, deps.roles, passTxManager{}, zap.NewNop())
	return svc, deps
}

// Drives a fresh procurement to the goods receiving stage.
func procurementAtReceiving(t *testing.T, svc *ProcurementService, quotedTotal float64) string {
	t.Helper()
	ctx := context.Background()

	instance, err := svc.Start(ctx, "clerk", entity.Fragment{
		"order_id":       float64(501),
		"items":          map[string]interface{}{"7": float64(200)},
		"location_id":    float64(1),
		"estimated_cost": float64(30000),
	})
	require.NoError(t, err)

	_, err = svc.VerifyBudget(ctx, instance.ID, "bursar", entity.Fragment{"budget_line": "stationery"})
	require.NoError(t, err)
	_, err = svc.SelectSupplier(ctx, instance.ID, "bursar", entity.Fragment{
		"supplier_id":  float64(12),
		"quoted_total": quotedTotal,
	})
	require.NoError(t, err)
	_, err = svc.SubmitForApproval(ctx, instance.ID, "bursar", nil)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, instance.ID, "principal", nil)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, instance.ID, "clerk", entity.Fragment{"po_number": "PO-501"})
	require.NoError(t, err)

	return instance.ID
}

func TestProcurement_FullRun(t *testing.T) {
	svc, deps := newProcurementFixture(t)
	ctx := context.Background()

	id := procurementAtReceiving(t, svc, 28000)

	received := map[string]interface{}{"7": float64(200)}
	instance, err := svc.ReceiveGoods(ctx, id, "storekeeper", entity.Fragment{"received": received})
	require.NoError(t, err)
	assert.Equal(t, StageInvoiceMatching, instance.CurrentStage)

	instance, err = svc.MatchInvoice(ctx, id, "bursar", entity.Fragment{
		"invoice_no": "INV-88",
		"invoiced":   received,
	})
	require.NoError(t, err)
	assert.Equal(t, StagePaymentProcessing, instance.CurrentStage)

	instance, err = svc.ProcessPayment(ctx, id, "bursar", entity.Fragment{"payment_ref": "PAY-88"})
	require.NoError(t, err)
	assert.Equal(t, StageStockUpdate, instance.CurrentStage)

	instance, err = svc.UpdateStock(ctx, id, "storekeeper", nil)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StageCompleted, instance.CurrentStage)
	assert.Equal(t, domainwf.StatusCompleted, instance.Status)
	assert.Equal(t, int64(200), deps.inventory.stock(7, 1))
}

func TestProcurement_InvoiceMismatchLoopsToReceiving(t *testing.T) {
	svc, _ := newProcurementFixture(t)
	ctx := context.Background()

	id := procurementAtReceiving(t, svc, 28000)

	_, err := svc.ReceiveGoods(ctx, id, "storekeeper", entity.Fragment{
		"received": map[string]interface{}{"7": float64(180)},
	})
	require.NoError(t, err)

	instance, err := svc.MatchInvoice(ctx, id, "bursar", entity.Fragment{
		"invoice_no": "INV-88",
		"invoiced":   map[string]interface{}{"7": float64(200)},
	})
	require.NoError(t, err)
	assert.Equal(t, StageGoodsReceiving, instance.CurrentStage)

	// A corrected receipt supersedes the first and matches on retry.
	_, err = svc.ReceiveGoods(ctx, id, "storekeeper", entity.Fragment{
		"received": map[string]interface{}{"7": float64(200)},
	})
	require.NoError(t, err)
	instance, err = svc.MatchInvoice(ctx, id, "bursar", entity.Fragment{
		"invoice_no": "INV-88",
		"invoiced":   map[string]interface{}{"7": float64(200)},
	})
	require.NoError(t, err)
	assert.Equal(t, StagePaymentProcessing, instance.CurrentStage)
}

func TestProcurement_ApproveGatedOnQuotedTotal(t *testing.T) {
	svc, deps := newProcurementFixture(t)
	ctx := context.Background()

	instance, err := svc.Start(ctx, "clerk", entity.Fragment{
		"order_id":       float64(502),
		"items":          map[string]interface{}{"7": float64(10)},
		"location_id":    float64(1),
		"estimated_cost": float64(40000),
	})
	require.NoError(t, err)
	id := instance.ID

	_, err = svc.VerifyBudget(ctx, id, "bursar", entity.Fragment{"budget_line": "stationery"})
	require.NoError(t, err)

	// The quote came in above the estimate; the gate uses the quote.
	_, err = svc.SelectSupplier(ctx, id, "bursar", entity.Fragment{
		"supplier_id":  float64(12),
		"quoted_total": float64(60000),
	})
	require.NoError(t, err)
	_, err = svc.SubmitForApproval(ctx, id, "bursar", nil)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, id, "bursar", nil)
	var insufficient *domainwf.InsufficientAuthorityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, float64(60000), insufficient.Required)

	got, err := deps.engine.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StagePurchaseApproval, got.CurrentStage)

	got, err = svc.Approve(ctx, id, "principal", nil)
	require.NoError(t, err)
	assert.Equal(t, StageOrderPlacement, got.CurrentStage)
	assert.Equal(t, float64(60000), got.Payload.Fragment(StageOrderPlacement)["approved_total"])
}

func TestProcurement_StartMissingFieldsListsAll(t *testing.T) {
	svc, _ := newProcurementFixture(t)

	_, err := svc.Start(context.Background(), "clerk", entity.Fragment{"order_id": float64(1)})

	var missing *domainwf.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"items", "location_id", "estimated_cost"}, missing.Fields)
}

func TestProcurement_RejectOnBudget(t *testing.T) {
	svc, _ := newProcurementFixture(t)
	ctx := context.Background()

	instance, err := svc.Start(ctx, "clerk", entity.Fragment{
		"order_id":       float64(503),
		"items":          map[string]interface{}{"7": float64(10)},
		"location_id":    float64(1),
		"estimated_cost": float64(40000),
	})
	require.NoError(t, err)

	_, err = svc.VerifyBudget(ctx, instance.ID, "bursar", entity.Fragment{"budget_line": "stationery"})
	require.NoError(t, err)

	got, err := svc.RejectBudget(ctx, instance.ID, "bursar", entity.Fragment{"reason": "line exhausted"})
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatusRejected, got.Status)
}
