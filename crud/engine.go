// Package crud implements the Unified CRUD engine from spec.md §4.8:
// one strategy-parameterized entry point per entity class that fans
// out create/update/delete across every backend a model is bound to,
// enforcing ownership/ACL security and recording a per-backend
// operations log, generalized from the teacher's fixed four-repository
// CompositeRepository (db/repository/composite.go) into an open,
// metadata-driven binding set.
package crud

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go.dataops.dev/daofactory"
	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/model"
	"go.dataops.dev/secmodel"
	"go.dataops.dev/uuidv7"
	"go.dataops.dev/workerpool"
)

// applyFunc performs one backend operation (create, update, or delete)
// against a resolved DAO, returning whatever the DAO call returned.
type applyFunc func(ctx context.Context, d dao.DAO, entity dao.Entity) (any, error)

// Engine is the per-entity-class Unified CRUD engine. T should be a
// struct embedding model.Entity or model.SecuredEntity; Secured is
// auto-detected from T's shape by NewEngine but may be overridden.
type Engine[T any] struct {
	Metadata model.Metadata
	Strategy SyncStrategy
	Secured  bool
	Registry *daofactory.Registry

	// Pool backs the EVENTUAL strategy's background replication. A nil
	// Pool falls back to replicating inline with a warning logged,
	// rather than silently dropping the secondary writes.
	Pool *workerpool.Pool

	log *logrus.Entry
	ops opLog

	mu   sync.Mutex
	daos map[string]dao.DAO
}

var securedEntityType = reflect.TypeOf(model.SecuredEntity{})

// isSecuredType reports whether T embeds model.SecuredEntity, the
// auto-detection spec.md §4.8 calls for ("security enforcement flag,
// auto-on for SecuredEntity classes").
func isSecuredType[T any]() bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == securedEntityType {
			return true
		}
	}
	return false
}

// NewEngine constructs an engine for entity class T, defaulting to the
// PRIMARY_FIRST strategy (spec.md §4.8's stated default).
func NewEngine[T any](metadata model.Metadata, registry *daofactory.Registry) *Engine[T] {
	return &Engine[T]{
		Metadata: metadata,
		Strategy: PrimaryFirst,
		Secured:  isSecuredType[T](),
		Registry: registry,
		log:      dlog.For("crud." + metadata.Path),
		daos:     map[string]dao.DAO{},
	}
}

// Operations returns every StorageOperation recorded so far, in
// append order.
func (e *Engine[T]) Operations() []StorageOperation { return e.ops.Operations() }

// ClearOperations empties the operations log.
func (e *Engine[T]) ClearOperations() { e.ops.Clear() }

// Close disconnects every backend DAO this engine has resolved.
func (e *Engine[T]) Close(ctx context.Context) error {
	e.mu.Lock()
	daos := e.daos
	e.daos = map[string]dao.DAO{}
	e.mu.Unlock()

	var firstErr error
	for name, d := range daos {
		if err := d.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("crud: disconnect %s: %w", name, err)
		}
	}
	return firstErr
}

func (e *Engine[T]) resolveDAO(ctx context.Context, bindingName string) (dao.DAO, error) {
	e.mu.Lock()
	if d, ok := e.daos[bindingName]; ok {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	binding, ok := e.Metadata.Bindings[bindingName]
	if !ok {
		return nil, &ConfigurationError{Message: fmt.Sprintf("no binding named %q", bindingName)}
	}
	d, err := e.Registry.Resolve(ctx, binding, e.Metadata.Path)
	if err != nil {
		return nil, &ConnectionError{StorageName: bindingName, Err: err}
	}

	e.mu.Lock()
	e.daos[bindingName] = d
	e.mu.Unlock()
	return d, nil
}

// Create stamps ownership and audit fields on a secured entity,
// refusing without a SecurityContext; applies the configured strategy
// across the model's bindings. PRIMARY_FIRST and EVENTUAL write the
// primary binding synchronously to obtain its assigned id, then
// re-materialize the entity with that id before fanning out to
// secondaries. SEQUENTIAL and PARALLEL treat every binding
// symmetrically, so the id is generated client-side up front instead
// (a binding can't assign an id that every other binding must already
// agree on before any of them has run).
func (e *Engine[T]) Create(ctx context.Context, value T, secCtx *secmodel.SecurityContext) (T, error) {
	var zero T
	entity, err := toEntity(value)
	if err != nil {
		return zero, fmt.Errorf("crud: encode entity: %w", err)
	}

	stampTimestamps(entity, true)
	if e.Secured {
		if secCtx == nil {
			return zero, &PermissionError{Message: "security context required to create a secured entity"}
		}
		if entity, err = e.stampSecured(entity, secCtx.UserID, true); err != nil {
			return zero, err
		}
	}

	primaryName, ok := e.Metadata.Primary()
	if !ok {
		return zero, &ConfigurationError{Message: "model has no bindings configured"}
	}

	createApply := func(ctx context.Context, d dao.DAO, entity dao.Entity) (any, error) {
		return d.Create(ctx, entity)
	}

	switch e.Strategy {
	case Sequential, Parallel:
		if id, _ := entity["id"].(string); id == "" {
			entity["id"] = uuidv7.New()
		}
		if e.Strategy == Sequential {
			err = e.sequentialWrite(ctx, e.Metadata.BindingOrder, "create", entity, createApply, true)
		} else {
			err = e.parallelWrite(ctx, e.Metadata.BindingOrder, "create", entity, createApply, true)
		}
		if err != nil {
			return zero, err
		}

	default: // PrimaryFirst, Eventual
		d, err := e.resolveDAO(ctx, primaryName)
		if err != nil {
			return zero, err
		}
		id, err := d.Create(ctx, cloneEntity(entity))
		if err != nil {
			e.ops.failed(primaryName, "create", entity, err)
			return zero, &StorageError{StorageName: primaryName, Operation: "create", Err: err}
		}
		e.ops.ok(primaryName, "create", entity, id)
		entity["id"] = id

		secondaries := e.Metadata.Secondaries()
		if e.Strategy == Eventual {
			e.scheduleEventualApply(secondaries, "create", entity, createApply)
		} else {
			e.bestEffortApply(ctx, secondaries, "create", entity, createApply)
		}
	}

	return fromEntity[T](entity)
}

// Read resolves the DAO for bindingName (the primary binding if
// empty), returning the materialized entity. A secured model rejects
// callers without READ permission; ownership short-circuits the check.
func (e *Engine[T]) Read(ctx context.Context, id, bindingName string, secCtx *secmodel.SecurityContext) (T, error) {
	var zero T
	entity, err := e.fetchByID(ctx, bindingName, id)
	if err != nil {
		return zero, err
	}
	if err := e.authorize(entity, secCtx, model.PermRead, "read"); err != nil {
		return zero, err
	}
	return fromEntity[T](entity)
}

// Update fetches the current instance, requires WRITE permission,
// stamps modified_by, merges patch, and fans the result out per
// strategy across every binding.
func (e *Engine[T]) Update(ctx context.Context, id string, patch dao.Entity, secCtx *secmodel.SecurityContext) (T, error) {
	var zero T
	current, err := e.fetchByID(ctx, "", id)
	if err != nil {
		return zero, err
	}
	if err := e.authorize(current, secCtx, model.PermWrite, "write"); err != nil {
		return zero, err
	}

	merged := cloneEntity(current)
	for k, v := range patch {
		merged[k] = v
	}
	if e.Secured && secCtx != nil {
		merged["modified_by"] = secCtx.UserID
	}
	stampTimestamps(merged, false)
	merged["id"] = id

	updateApply := func(ctx context.Context, d dao.DAO, entity dao.Entity) (any, error) {
		return d.Update(ctx, id, entity)
	}

	switch e.Strategy {
	case Sequential:
		err = e.sequentialWrite(ctx, e.Metadata.BindingOrder, "update", merged, updateApply, false)
	case Parallel:
		err = e.parallelWrite(ctx, e.Metadata.BindingOrder, "update", merged, updateApply, false)
	case Eventual:
		primaryName, _ := e.Metadata.Primary()
		if err = e.applyOne(ctx, primaryName, "update", merged, updateApply); err == nil {
			e.scheduleEventualApply(e.Metadata.Secondaries(), "update", merged, updateApply)
		}
	default: // PrimaryFirst
		primaryName, _ := e.Metadata.Primary()
		if err = e.applyOne(ctx, primaryName, "update", merged, updateApply); err == nil {
			e.bestEffortApply(ctx, e.Metadata.Secondaries(), "update", merged, updateApply)
		}
	}
	if err != nil {
		return zero, err
	}
	return fromEntity[T](merged)
}

// Delete fetches the current instance, requires DELETE permission,
// then fans the delete out per strategy. PRIMARY_FIRST and EVENTUAL
// delete secondaries first and the primary last, keeping the source of
// truth available until every mirror is gone.
func (e *Engine[T]) Delete(ctx context.Context, id string, secCtx *secmodel.SecurityContext) error {
	current, err := e.fetchByID(ctx, "", id)
	if err != nil {
		return err
	}
	if err := e.authorize(current, secCtx, model.PermDelete, "delete"); err != nil {
		return err
	}

	deleteApply := func(ctx context.Context, d dao.DAO, entity dao.Entity) (any, error) {
		return d.Delete(ctx, id)
	}

	switch e.Strategy {
	case Sequential:
		return e.sequentialWrite(ctx, e.Metadata.BindingOrder, "delete", current, deleteApply, false)
	case Parallel:
		return e.parallelWrite(ctx, e.Metadata.BindingOrder, "delete", current, deleteApply, false)
	default: // PrimaryFirst, Eventual: secondaries first, primary last.
		primaryName, _ := e.Metadata.Primary()
		for _, name := range e.Metadata.Secondaries() {
			if err := e.applyOne(ctx, name, "delete", current, deleteApply); err != nil {
				e.log.WithError(err).WithField("storage_name", name).Warn("secondary delete failed")
			}
		}
		return e.applyOne(ctx, primaryName, "delete", current, deleteApply)
	}
}

// Find queries the primary adapter. For a secured model with a given
// context, the caller's query is intersected (via $and) with a
// security filter {$or: [{owner_id: user_id}, {acl.principal_id:
// {$in: principal_ids}}]}, and results are additionally filtered
// in-process by a per-instance READ permission check. An unsecured
// model queries the primary adapter directly. A secured model queried
// with no context sends q unchanged to the primary adapter, but every
// result then fails the READ check, so the result is empty.
func (e *Engine[T]) Find(ctx context.Context, q dao.Query, limit, skip int, secCtx *secmodel.SecurityContext) ([]T, error) {
	primaryName, ok := e.Metadata.Primary()
	if !ok {
		return nil, &ConfigurationError{Message: "model has no bindings configured"}
	}
	d, err := e.resolveDAO(ctx, primaryName)
	if err != nil {
		return nil, err
	}

	effective := q
	if e.Secured && secCtx != nil {
		ids := secCtx.PrincipalIDs()
		principalIDs := make([]any, 0, len(ids))
		for _, id := range ids {
			principalIDs = append(principalIDs, id)
		}
		securityFilter := dao.Or(
			dao.Eq("owner_id", secCtx.UserID),
			dao.In("acl.principal_id", principalIDs),
		)
		if q.IsZero() {
			effective = securityFilter
		} else {
			effective = dao.And(q, securityFilter)
		}
	}

	entities, err := d.Find(ctx, effective, limit, skip)
	if err != nil {
		return nil, &QueryError{StorageName: primaryName, Err: err}
	}

	out := make([]T, 0, len(entities))
	for _, entity := range entities {
		if e.Secured {
			if err := e.authorize(entity, secCtx, model.PermRead, "read"); err != nil {
				continue
			}
		}
		v, err := fromEntity[T](entity)
		if err != nil {
			return nil, fmt.Errorf("crud: decode entity: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Engine[T]) fetchByID(ctx context.Context, bindingName, id string) (dao.Entity, error) {
	if bindingName == "" {
		name, ok := e.Metadata.Primary()
		if !ok {
			return nil, &ConfigurationError{Message: "model has no bindings configured"}
		}
		bindingName = name
	}
	d, err := e.resolveDAO(ctx, bindingName)
	if err != nil {
		return nil, err
	}
	entity, err := d.FindByID(ctx, id)
	if err != nil {
		return nil, &StorageError{StorageName: bindingName, Operation: "find_by_id", Err: err}
	}
	if entity == nil {
		return nil, &NotFoundError{Model: e.Metadata.Path, ID: id}
	}
	return entity, nil
}

func (e *Engine[T]) authorize(entity dao.Entity, secCtx *secmodel.SecurityContext, perm model.PermissionSet, action string) error {
	if !e.Secured {
		return nil
	}
	sec, err := entitySecured(entity)
	if err != nil {
		return fmt.Errorf("crud: decode security fields: %w", err)
	}
	if secCtx == nil || !secmodel.CheckPermission(*secCtx, sec, perm) {
		return &PermissionError{Message: fmt.Sprintf("no %s permission", action)}
	}
	if !secmodel.EvaluateAuthDirectives(*secCtx, sec.AuthRules) {
		return &PermissionError{Message: fmt.Sprintf("auth directive denied %s", action)}
	}
	return nil
}

// stampSecured assigns owner_id/created_by (create only) and
// modified_by, and on create appends an owner ACL entry granting
// ADMIN, merging the result back onto entity so non-security fields
// survive untouched.
func (e *Engine[T]) stampSecured(entity dao.Entity, userID string, isCreate bool) (dao.Entity, error) {
	sec, err := entitySecured(entity)
	if err != nil {
		return nil, fmt.Errorf("crud: decode security fields: %w", err)
	}
	now := time.Now().UTC()
	if isCreate {
		sec.OwnerID = userID
		sec.CreatedBy = userID
		sec.AddOwnerACL(userID, now)
	}
	sec.ModifiedBy = userID

	raw, err := json.Marshal(sec)
	if err != nil {
		return nil, fmt.Errorf("crud: encode security fields: %w", err)
	}
	var secMap dao.Entity
	if err := json.Unmarshal(raw, &secMap); err != nil {
		return nil, fmt.Errorf("crud: re-decode security fields: %w", err)
	}

	merged := make(dao.Entity, len(entity)+len(secMap))
	for k, v := range entity {
		merged[k] = v
	}
	for k, v := range secMap {
		merged[k] = v
	}
	return merged, nil
}

func stampTimestamps(entity dao.Entity, isCreate bool) {
	now := time.Now().UTC()
	if isCreate {
		if _, ok := entity["created_at"]; !ok {
			entity["created_at"] = now
		}
	}
	entity["updated_at"] = now
}

func cloneEntity(src dao.Entity) dao.Entity {
	out := make(dao.Entity, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func toEntity[T any](v T) (dao.Entity, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m dao.Entity
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromEntity[T any](e dao.Entity) (T, error) {
	var out T
	raw, err := json.Marshal(e)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func entitySecured(e dao.Entity) (*model.SecuredEntity, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	sec := &model.SecuredEntity{}
	if err := json.Unmarshal(raw, sec); err != nil {
		return nil, err
	}
	return sec, nil
}
