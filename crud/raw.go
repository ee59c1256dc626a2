package crud

import (
	"context"
	"fmt"

	"go.dataops.dev/dao"
	"go.dataops.dev/model"
	"go.dataops.dev/secmodel"
)

// The Raw methods are the untyped counterpart to Engine[T]'s typed API,
// used by rpc.Tool to dispatch dataops/dataops_batch calls across many
// model engines through the ModelEngine interface without itself being
// generic. Unlike the typed API (meant for trusted in-process callers
// that need real field values), every Raw method projects the result
// through model.Project before returning it — Design Notes §9's
// serialization boundary, applied here because this is the layer an
// entity actually leaves the process through.

func (e *Engine[T]) CreateRaw(ctx context.Context, data dao.Entity, secCtx *secmodel.SecurityContext) (dao.Entity, error) {
	v, err := fromEntity[T](data)
	if err != nil {
		return nil, fmt.Errorf("crud: decode input: %w", err)
	}
	created, err := e.Create(ctx, v, secCtx)
	if err != nil {
		return nil, err
	}
	return e.project(created)
}

func (e *Engine[T]) ReadRaw(ctx context.Context, id, bindingName string, secCtx *secmodel.SecurityContext) (dao.Entity, error) {
	v, err := e.Read(ctx, id, bindingName, secCtx)
	if err != nil {
		return nil, err
	}
	return e.project(v)
}

func (e *Engine[T]) UpdateRaw(ctx context.Context, id string, patch dao.Entity, secCtx *secmodel.SecurityContext) (dao.Entity, error) {
	v, err := e.Update(ctx, id, patch, secCtx)
	if err != nil {
		return nil, err
	}
	return e.project(v)
}

func (e *Engine[T]) DeleteRaw(ctx context.Context, id string, secCtx *secmodel.SecurityContext) error {
	return e.Delete(ctx, id, secCtx)
}

func (e *Engine[T]) FindRaw(ctx context.Context, q dao.Query, limit, skip int, secCtx *secmodel.SecurityContext) ([]dao.Entity, error) {
	values, err := e.Find(ctx, q, limit, skip, secCtx)
	if err != nil {
		return nil, err
	}
	out := make([]dao.Entity, 0, len(values))
	for _, v := range values {
		projected, err := e.project(v)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

func (e *Engine[T]) project(v T) (dao.Entity, error) {
	entity, err := toEntity(v)
	if err != nil {
		return nil, fmt.Errorf("crud: encode entity: %w", err)
	}
	return model.Project(entity, e.Metadata.Sensitive), nil
}
