package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"db-relay/internal/metrics"
	"db-relay/internal/model"

	"github.com/sirupsen/logrus"
)

// ErrPrecondition marks an integration that cannot start: a missing connection or no mappings.
var ErrPrecondition = errors.New("precondition failed")

const rollbackNarrative = "All operations were rolled back."

// Store resolves read models owned outside the relay.
type Store interface {
	Integration(ctx context.Context, id string) (model.Integration, error)
	IntegrationsByGroup(ctx context.Context, group string) ([]model.Integration, error)
	Connection(ctx context.Context, id string) (model.Connection, error)
	Mappings(ctx context.Context, integrationID string) ([]model.Mapping, error)
}

// Recorder persists run logs.
type Recorder interface {
	Record(ctx context.Context, entry model.IntegrationLog) error
}

// Executor runs a single transfer. *Runner is the production implementation.
type Executor interface {
	Run(ctx context.Context, req Request) model.RunResult
}

// Observer receives progress callbacks during batch runs.
type Observer interface {
	OnStart(it model.Integration, index, total int)
	OnComplete(it model.Integration, res model.RunResult)
	OnError(it model.Integration, res model.RunResult)
}

type nopObserver struct{}

func (nopObserver) OnStart(model.Integration, int, int) {}

func (nopObserver) OnComplete(model.Integration, model.RunResult) {}

func (nopObserver) OnError(model.Integration, model.RunResult) {}

// Ordering selects how RunMany orders its integrations.
type Ordering int

const (
	// OrderByExecution sorts by ExecutionOrder ascending, keeping caller order on ties.
	OrderByExecution Ordering = iota
	// OrderAsGiven keeps the caller's order.
	OrderAsGiven
)

type Orchestrator struct {
	Store    Store
	Executor Executor
	Recorder Recorder
	Observer Observer
	Log      logrus.FieldLogger
	Metrics  *metrics.Collector
}

func NewOrchestrator(store Store, exec Executor, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{Store: store, Executor: exec, Log: log}
}

// RunIntegration runs one integration now, as a scheduler trigger would.
// Mappings are optional here; unmapped placeholders fall back to column names.
func (o *Orchestrator) RunIntegration(ctx context.Context, id string) model.RunResult {
	start := time.Now()
	it, err := o.Store.Integration(ctx, id)
	if err != nil {
		o.logger().WithField("integration_id", id).WithError(err).Error("integration lookup failed")
		return model.RunResult{Error: fmt.Sprintf("integration %q: %v", id, err)}
	}

	req, err := o.prepare(ctx, it, false)
	var res model.RunResult
	if err != nil {
		res = model.RunResult{Error: err.Error(), DurationMs: time.Since(start).Milliseconds()}
		o.logger().WithField("integration", it.Name).WithError(err).Error("integration cannot start")
	} else {
		res = o.Executor.Run(ctx, req)
	}
	o.record(ctx, model.NewIntegrationLog(it, start, res))
	return res
}

// RunGroup runs every integration of a group by execution order.
func (o *Orchestrator) RunGroup(ctx context.Context, group string) model.BatchResult {
	list, err := o.Store.IntegrationsByGroup(ctx, group)
	if err != nil {
		return o.abort(fmt.Sprintf("Failed to load group '%s': %v", group, err))
	}
	if len(list) == 0 {
		return o.abort(fmt.Sprintf("No integrations found in group '%s'", group))
	}
	sortByExecution(list)
	return o.runBatch(ctx, list)
}

// RunMany resolves ids and runs them as one fail-fast batch.
func (o *Orchestrator) RunMany(ctx context.Context, ids []string, ord Ordering) model.BatchResult {
	list := make([]model.Integration, 0, len(ids))
	for _, id := range ids {
		it, err := o.Store.Integration(ctx, id)
		if err != nil {
			return o.abort(fmt.Sprintf("Integration '%s' could not be loaded: %v", id, err))
		}
		list = append(list, it)
	}
	if ord == OrderByExecution {
		sortByExecution(list)
	}
	return o.runBatch(ctx, list)
}

func sortByExecution(list []model.Integration) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ExecutionOrder < list[j].ExecutionOrder
	})
}

// runBatch stops at the first failure. Integrations that committed before it
// are listed in Committed; their writes are not reversed.
func (o *Orchestrator) runBatch(ctx context.Context, list []model.Integration) (batch model.BatchResult) {
	start := time.Now()
	obs := o.observer()
	batch.Results = []model.IntegrationResult{}
	var logs []model.IntegrationLog

	defer func() {
		batch.TotalDurationMs = time.Since(start).Milliseconds()
		o.Metrics.ObserveBatch(batch)
	}()

	for i, it := range list {
		obs.OnStart(it, i, len(list))
		itStart := time.Now()

		var res model.RunResult
		if err := ctx.Err(); err != nil {
			res = model.RunResult{Error: err.Error()}
		} else if req, err := o.prepare(ctx, it, true); err != nil {
			res = model.RunResult{Error: err.Error(), DurationMs: time.Since(itStart).Milliseconds()}
		} else {
			res = o.Executor.Run(ctx, req)
		}

		batch.Results = append(batch.Results, model.IntegrationResult{
			IntegrationID:   it.ID,
			IntegrationName: it.Name,
			ExecutionOrder:  it.ExecutionOrder,
			Result:          res,
		})

		if !res.Success {
			obs.OnError(it, res)
			batch.Success = false
			batch.Message = fmt.Sprintf("Integration '%s' failed: %s. %s", it.Name, res.Error, rollbackNarrative)
			o.logger().WithFields(logrus.Fields{
				"integration": it.Name,
				"position":    i + 1,
				"committed":   len(batch.Committed),
				"skipped":     len(list) - i - 1,
			}).Error("batch halted")
			o.record(ctx, model.NewIntegrationLog(it, itStart, res))
			return batch
		}

		obs.OnComplete(it, res)
		batch.TotalRowsAffected += res.RowsAffected
		batch.Committed = append(batch.Committed, it.ID)
		logs = append(logs, model.NewIntegrationLog(it, itStart, res))
	}

	batch.Success = true
	batch.Message = fmt.Sprintf("Successfully executed %d integrations", len(list))
	for _, l := range logs {
		o.record(ctx, l)
	}
	return batch
}

// prepare builds the runner request, enforcing connection existence and,
// for batches, at least one mapping.
func (o *Orchestrator) prepare(ctx context.Context, it model.Integration, requireMappings bool) (Request, error) {
	src, err := o.connection(ctx, it.SourceConnectionID, "source")
	if err != nil {
		return Request{}, err
	}
	dst, err := o.connection(ctx, it.TargetConnectionID, "target")
	if err != nil {
		return Request{}, err
	}
	mappings, err := o.Store.Mappings(ctx, it.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return Request{}, fmt.Errorf("failed to load mappings: %w", err)
	}
	if requireMappings && len(mappings) == 0 {
		return Request{}, fmt.Errorf("%w: no mappings defined for integration '%s'", ErrPrecondition, it.Name)
	}
	return Request{
		Integration:      it.Name,
		SourceDialect:    src.DatabaseType,
		SourceConnString: src.ConnectionString,
		SourceQuery:      it.SourceQuery,
		TargetDialect:    dst.DatabaseType,
		TargetConnString: dst.ConnectionString,
		TargetQuery:      it.TargetQuery,
		Mappings:         mappings,
	}, nil
}

func (o *Orchestrator) connection(ctx context.Context, id, role string) (model.Connection, error) {
	if id == "" {
		return model.Connection{}, fmt.Errorf("%w: %s connection not set", ErrPrecondition, role)
	}
	c, err := o.Store.Connection(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Connection{}, fmt.Errorf("%w: %s connection '%s' not found", ErrPrecondition, role, id)
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("failed to load %s connection: %w", role, err)
	}
	return c, nil
}

func (o *Orchestrator) abort(msg string) model.BatchResult {
	o.logger().Error(msg)
	res := model.BatchResult{Message: msg, Results: []model.IntegrationResult{}}
	o.Metrics.ObserveBatch(res)
	return res
}

func (o *Orchestrator) record(ctx context.Context, entry model.IntegrationLog) {
	if o.Recorder == nil {
		return
	}
	if err := o.Recorder.Record(ctx, entry); err != nil {
		o.logger().WithField("integration", entry.IntegrationName).WithError(err).Warn("failed to record integration log")
	}
}

func (o *Orchestrator) observer() Observer {
	if o.Observer == nil {
		return nopObserver{}
	}
	return o.Observer
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}
