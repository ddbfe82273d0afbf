package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/dashboard"
	jobmetrics "github.com/stockroom/stockroom/internal/jobs"
	_ "github.com/stockroom/stockroom/internal/testing/guard"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTaskConstructors(t *testing.T) {
	task, err := NewReconcileTotalsTask(true)
	require.NoError(t, err)
	assert.Equal(t, TaskReconcileTotals, task.Type())
	var payload ReconcileTotalsPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.True(t, payload.Repair)

	task, err = NewLowStockScanTask(25)
	require.NoError(t, err)
	assert.Equal(t, TaskLowStockScan, task.Type())

	task, err = NewIdempotencyCleanupTask(48)
	require.NoError(t, err)
	assert.Equal(t, TaskIdempotencyCleanup, task.Type())
}

func TestReconcileTotalsJobRecordsDrift(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	var sawRepair bool
	job := NewReconcileTotalsJob(map[string]ReconcileFunc{
		"customer_order": func(_ context.Context, repair bool) (int, error) {
			sawRepair = repair
			return 2, nil
		},
		"supplier_purchase": func(context.Context, bool) (int, error) { return 0, nil },
	}, discardLogger(), metrics)

	task, err := NewReconcileTotalsTask(true)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.True(t, sawRepair)
}

func TestReconcileTotalsJobContinuesAfterModuleFailure(t *testing.T) {
	var ran bool
	job := NewReconcileTotalsJob(map[string]ReconcileFunc{
		"customer_order":    func(context.Context, bool) (int, error) { return 0, errors.New("db down") },
		"supplier_purchase": func(context.Context, bool) (int, error) { ran = true; return 1, nil },
	}, discardLogger(), nil)

	task, err := NewReconcileTotalsTask(false)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.True(t, ran)
}

func TestReconcileTotalsJobJoinsEveryModuleError(t *testing.T) {
	errOrders := errors.New("orders timeout")
	errPurchases := errors.New("purchases timeout")
	job := NewReconcileTotalsJob(map[string]ReconcileFunc{
		"customer_order":    func(context.Context, bool) (int, error) { return 0, errOrders },
		"supplier_purchase": func(context.Context, bool) (int, error) { return 0, errPurchases },
	}, discardLogger(), nil)

	task, err := NewReconcileTotalsTask(true)
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, errOrders)
	require.ErrorIs(t, err, errPurchases)
	assert.Contains(t, err.Error(), "customer_order: orders timeout")
	assert.Contains(t, err.Error(), "supplier_purchase: purchases timeout")
}

func TestReconcileTotalsJobRejectsBadPayload(t *testing.T) {
	job := NewReconcileTotalsJob(map[string]ReconcileFunc{
		"customer_order": func(context.Context, bool) (int, error) { return 0, nil },
	}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskReconcileTotals, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReconcileTotalsJobRequiresModules(t *testing.T) {
	var job *ReconcileTotalsJob
	task, err := NewReconcileTotalsTask(false)
	require.NoError(t, err)
	assert.Error(t, job.Handle(context.Background(), task))
}

type stubLowStock struct {
	threshold int
	products  []dashboard.LowStockProduct
	err       error
}

func (s *stubLowStock) LowStockAlerts(_ context.Context, threshold int) ([]dashboard.LowStockProduct, error) {
	s.threshold = threshold
	return s.products, s.err
}

func TestLowStockScanJob(t *testing.T) {
	source := &stubLowStock{products: []dashboard.LowStockProduct{{ProductID: 1, Name: "Milk", StockQuantity: 3, ReorderLevel: 10}}}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewLowStockScanJob(source, discardLogger(), metrics)

	task, err := NewLowStockScanTask(50)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 50, source.threshold)

	source.err = errors.New("boom")
	assert.Error(t, job.Handle(context.Background(), task))
}

type stubCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, nil
}

func TestIdempotencyCleanupJobDefaultsRetention(t *testing.T) {
	store := &stubCleaner{removed: 4}
	job := NewIdempotencyCleanupJob(store, discardLogger(), nil)

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 7*24*time.Hour, store.olderThan)

	task, err = NewIdempotencyCleanupTask(12)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 12*time.Hour, store.olderThan)
}

func TestJobMetricsCountRuns(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewIdempotencyCleanupJob(&stubCleaner{}, nil, metrics)
	task, err := NewIdempotencyCleanupTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	count, err := testutil.GatherAndCount(registry, "stockroom_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, discardLogger()).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"archived":0}`, rec.Body.String())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthReportsQueueState(t *testing.T) {
	h := &Handler{inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, logger: discardLogger()}
	r := chi.NewRouter()
	h.MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var body QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pending)
	assert.Equal(t, 1, body.Retry)

	h.inspector = stubInspector{err: errors.New("redis down")}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
