package crud

import (
	"context"
	"errors"
	"sync"

	"go.dataops.dev/dao"
	"go.dataops.dev/workerpool"
)

// applyOne resolves bindingName's DAO and runs apply against it once,
// recording the attempt in the operations log.
func (e *Engine[T]) applyOne(ctx context.Context, bindingName, operation string, entity dao.Entity, apply applyFunc) error {
	d, err := e.resolveDAO(ctx, bindingName)
	if err != nil {
		return err
	}
	result, err := apply(ctx, d, cloneEntity(entity))
	if err != nil {
		e.ops.failed(bindingName, operation, entity, err)
		return &StorageError{StorageName: bindingName, Operation: operation, Err: err}
	}
	e.ops.ok(bindingName, operation, entity, result)
	return nil
}

// replicate runs apply against bindingName and logs, rather than
// propagates, any failure — the PRIMARY_FIRST/EVENTUAL secondary
// contract (spec.md §4.8).
func (e *Engine[T]) replicate(ctx context.Context, bindingName, operation string, entity dao.Entity, apply applyFunc) {
	if err := e.applyOne(ctx, bindingName, operation, entity, apply); err != nil {
		e.log.WithError(err).WithField("storage_name", bindingName).Warn("secondary replication failed")
	}
}

// bestEffortApply fans out to every binding in bindings concurrently,
// waiting for all of them (PRIMARY_FIRST's synchronous secondary
// fan-out).
func (e *Engine[T]) bestEffortApply(ctx context.Context, bindings []string, operation string, entity dao.Entity, apply applyFunc) {
	var wg sync.WaitGroup
	for _, name := range bindings {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.replicate(ctx, name, operation, entity, apply)
		}()
	}
	wg.Wait()
}

// scheduleEventualApply hands each binding's replication to the shared
// FlavorGoroutine worker pool and returns immediately, without
// awaiting completion. There is intentionally no retry and no durable
// log of the scheduled task beyond the operations log entry the
// background goroutine eventually writes — spec.md §9 Design Notes
// flags this as a gap for production use ("an at-least-once
// replicator" would need its own durable queue), not something to
// silently paper over here.
func (e *Engine[T]) scheduleEventualApply(bindings []string, operation string, entity dao.Entity, apply applyFunc) {
	if e.Pool == nil {
		e.log.Warn("eventual strategy configured with no worker pool; replicating inline")
		e.bestEffortApply(context.Background(), bindings, operation, entity, apply)
		return
	}
	for _, name := range bindings {
		name := name
		if _, err := e.Pool.Submit(func(taskCtx context.Context) (any, error) {
			e.replicate(taskCtx, name, operation, entity, apply)
			return nil, nil
		}, workerpool.Options{}); err != nil {
			e.log.WithError(err).WithField("storage_name", name).Warn("failed to schedule eventual replication")
		}
	}
}

// sequentialWrite applies to every binding in order, stopping at the
// first failure. When rollback is true (Create only — see Engine.Create),
// every binding that already succeeded is rolled back via delete(id)
// before the error propagates.
func (e *Engine[T]) sequentialWrite(ctx context.Context, bindings []string, operation string, entity dao.Entity, apply applyFunc, rollback bool) error {
	id, _ := entity["id"].(string)
	var done []string
	for _, name := range bindings {
		if err := e.applyOne(ctx, name, operation, entity, apply); err != nil {
			if rollback {
				e.rollbackAll(ctx, done, id)
			}
			return err
		}
		done = append(done, name)
	}
	return nil
}

// parallelWrite applies to every binding concurrently. When rollback
// is true and any binding fails, every binding that succeeded is
// rolled back via delete(id) before an aggregated error propagates.
func (e *Engine[T]) parallelWrite(ctx context.Context, bindings []string, operation string, entity dao.Entity, apply applyFunc, rollback bool) error {
	id, _ := entity["id"].(string)

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, len(bindings))
	var wg sync.WaitGroup
	for _, name := range bindings {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- outcome{name, e.applyOne(ctx, name, operation, entity, apply)}
		}()
	}
	wg.Wait()
	close(results)

	var succeeded []string
	var errs []error
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		succeeded = append(succeeded, r.name)
	}
	if len(errs) > 0 {
		if rollback {
			e.rollbackAll(ctx, succeeded, id)
		}
		return errors.Join(errs...)
	}
	return nil
}

func (e *Engine[T]) rollbackAll(ctx context.Context, bindings []string, id string) {
	if id == "" {
		return
	}
	for _, name := range bindings {
		e.rollbackDelete(ctx, name, id)
	}
}

func (e *Engine[T]) rollbackDelete(ctx context.Context, bindingName, id string) {
	d, err := e.resolveDAO(ctx, bindingName)
	if err != nil {
		return
	}
	if _, err := d.Delete(ctx, id); err != nil {
		e.log.WithError(err).WithField("storage_name", bindingName).Warn("rollback delete failed")
		return
	}
	e.ops.record(StorageOperation{StorageName: bindingName, Operation: "rollback_delete", Status: "ok"})
}
