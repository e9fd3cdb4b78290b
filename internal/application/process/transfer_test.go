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

func newTransferFixture(t *testing.T) (*TransferService, *testDeps) {
	deps := newTestDeps(t)
	deps.inventory.setStock(7, 1, 100) // exercise books at the main store
	deps.inventory.setStock(8, 1, 40)  // chalk boxes at the main store
	svc := NewTransferService(deps.engine, deps.inventory, passTxManager{}, zap.NewNop())
	return svc, deps
}

func startTransfer(t *testing.T, svc *TransferService) string {
	t.Helper()
	instance, err := svc.Start(context.Background(), "storekeeper", entity.Fragment{
		"transfer_id": float64(301),
		"items":       map[string]interface{}{"7": float64(20), "8": float64(5)},
		"source":      float64(1),
		"destination": float64(2),
	})
	require.NoError(t, err)
	return instance.ID
}

func TestTransfer_FullRun(t *testing.T) {
	svc, deps := newTransferFixture(t)
	ctx := context.Background()

	id := startTransfer(t, svc)

	instance, err := svc.Approve(ctx, id, "bursar", nil)
	require.NoError(t, err)
	assert.Equal(t, StageStockPicking, instance.CurrentStage)

	picked := map[string]interface{}{"7": float64(20), "8": float64(5)}
	instance, err = svc.PickStock(ctx, id, "storekeeper", entity.Fragment{"picked": picked})
	require.NoError(t, err)
	assert.Equal(t, StageQualityCheck, instance.CurrentStage)
	assert.Equal(t, int64(80), deps.inventory.stock(7, 1))
	assert.Equal(t, int64(35), deps.inventory.stock(8, 1))

	instance, err = svc.PerformQualityCheck(ctx, id, "storekeeper", entity.Fragment{"status": QualityCheckPassed})
	require.NoError(t, err)
	assert.Equal(t, StageDispatch, instance.CurrentStage)

	instance, err = svc.Dispatch(ctx, id, "storekeeper", entity.Fragment{"dispatch_note": "DN-301"})
	require.NoError(t, err)
	assert.Equal(t, StageInTransit, instance.CurrentStage)

	instance, err = svc.ReceiveGoods(ctx, id, "receiver", entity.Fragment{"received": picked})
	require.NoError(t, err)
	assert.Equal(t, StageReceivingInspection, instance.CurrentStage)

	instance, err = svc.Inspect(ctx, id, "receiver", nil)
	require.NoError(t, err)
	assert.Equal(t, StageStockPosting, instance.CurrentStage)

	instance, err = svc.PostStock(ctx, id, "receiver", nil)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StageCompleted, instance.CurrentStage)
	assert.Equal(t, domainwf.StatusCompleted, instance.Status)
	assert.Equal(t, int64(20), deps.inventory.stock(7, 2))
	assert.Equal(t, int64(5), deps.inventory.stock(8, 2))

	history, err := deps.engine.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 8)
	assert.Equal(t, "workflow_started", history[0].ActionCode)
	assert.Equal(t, "stock_posted", history[len(history)-1].ActionCode)
}

func TestTransfer_DiscrepancyRoute(t *testing.T) {
	svc, deps := newTransferFixture(t)
	ctx := context.Background()

	id := startTransfer(t, svc)
	_, err := svc.Approve(ctx, id, "bursar", nil)
	require.NoError(t, err)
	_, err = svc.PickStock(ctx, id, "storekeeper", entity.Fragment{
		"picked": map[string]interface{}{"7": float64(20), "8": float64(5)},
	})
	require.NoError(t, err)
	_, err = svc.PerformQualityCheck(ctx, id, "storekeeper", entity.Fragment{"status": QualityCheckPassed})
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, id, "storekeeper", entity.Fragment{"dispatch_note": "DN-301"})
	require.NoError(t, err)

	// One box of chalk went missing in transit.
	_, err = svc.ReceiveGoods(ctx, id, "receiver", entity.Fragment{
		"received": map[string]interface{}{"7": float64(20), "8": float64(4)},
	})
	require.NoError(t, err)

	instance, err := svc.Inspect(ctx, id, "receiver", nil)
	require.NoError(t, err)
	assert.Equal(t, StageDiscrepancyResolution, instance.CurrentStage)

	instance, err = svc.ResolveDiscrepancy(ctx, id, "bursar", entity.Fragment{"resolution": "written off in transit"})
	require.NoError(t, err)
	assert.Equal(t, StageStockPosting, instance.CurrentStage)

	// Only what actually arrived is posted at the destination.
	_, err = svc.PostStock(ctx, id, "receiver", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deps.inventory.stock(8, 2))
}

func TestTransfer_QualityCheckFailureLoopsToPicking(t *testing.T) {
	svc, _ := newTransferFixture(t)
	ctx := context.Background()

	id := startTransfer(t, svc)
	_, err := svc.Approve(ctx, id, "bursar", nil)
	require.NoError(t, err)
	_, err = svc.PickStock(ctx, id, "storekeeper", entity.Fragment{
		"picked": map[string]interface{}{"7": float64(20)},
	})
	require.NoError(t, err)

	instance, err := svc.PerformQualityCheck(ctx, id, "storekeeper", entity.Fragment{"status": QualityCheckFailed})
	require.NoError(t, err)
	assert.Equal(t, StageStockPicking, instance.CurrentStage)
}

func TestTransfer_RepickRestoresPriorDeduction(t *testing.T) {
	svc, deps := newTransferFixture(t)
	ctx := context.Background()

	id := startTransfer(t, svc)
	_, err := svc.Approve(ctx, id, "bursar", nil)
	require.NoError(t, err)

	_, err = svc.PickStock(ctx, id, "storekeeper", entity.Fragment{
		"picked": map[string]interface{}{"7": float64(20), "8": float64(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(80), deps.inventory.stock(7, 1))
	assert.Equal(t, int64(35), deps.inventory.stock(8, 1))

	_, err = svc.PerformQualityCheck(ctx, id, "storekeeper", entity.Fragment{"status": QualityCheckFailed})
	require.NoError(t, err)

	// The first pick's deduction comes back; only the re-pick stays deducted.
	instance, err := svc.PickStock(ctx, id, "storekeeper", entity.Fragment{
		"picked": map[string]interface{}{"7": float64(12), "8": float64(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, StageQualityCheck, instance.CurrentStage)
	assert.Equal(t, int64(88), deps.inventory.stock(7, 1))
	assert.Equal(t, int64(35), deps.inventory.stock(8, 1))

	// Downstream inspection compares against the latest pick.
	_, err = svc.PerformQualityCheck(ctx, id, "storekeeper", entity.Fragment{"status": QualityCheckPassed})
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, id, "storekeeper", entity.Fragment{"dispatch_note": "DN-301"})
	require.NoError(t, err)
	_, err = svc.ReceiveGoods(ctx, id, "receiver", entity.Fragment{
		"received": map[string]interface{}{"7": float64(12), "8": float64(5)},
	})
	require.NoError(t, err)
	instance, err = svc.Inspect(ctx, id, "receiver", nil)
	require.NoError(t, err)
	assert.Equal(t, StageStockPosting, instance.CurrentStage)
}

func TestTransfer_QualityCheckUnknownStatus(t *testing.T) {
	svc, _ := newTransferFixture(t)
	ctx := context.Background()

	id := startTransfer(t, svc)
	_, err := svc.Approve(ctx, id, "bursar", nil)
	require.NoError(t, err)
	_, err = svc.PickStock(ctx, id, "storekeeper", entity.Fragment{
		"picked": map[string]interface{}{"7": float64(20)},
	})
	require.NoError(t, err)

	_, err = svc.PerformQualityCheck(ctx, id, "storekeeper", entity.Fragment{"status": "maybe"})

	var invalid *domainwf.InvalidValueError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "status", invalid.Field)
}

func TestTransfer_PickMoreThanStocked(t *testing.T) {
	svc, deps := newTransferFixture(t)
	ctx := context.Background()

	id := startTransfer(t, svc)
	_, err := svc.Approve(ctx, id, "bursar", nil)
	require.NoError(t, err)

	_, err = svc.PickStock(ctx, id, "storekeeper", entity.Fragment{
		"picked": map[string]interface{}{"7": float64(500)},
	})
	require.Error(t, err)

	// The failed pick must not advance the workflow.
	instance, err := deps.engine.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StageStockPicking, instance.CurrentStage)
}

func TestTransfer_StartValidatesItems(t *testing.T) {
	svc, _ := newTransferFixture(t)

	_, err := svc.Start(context.Background(), "storekeeper", entity.Fragment{
		"transfer_id": float64(302),
		"items":       "not-a-map",
		"source":      float64(1),
		"destination": float64(2),
	})
	assert.Error(t, err)
}
