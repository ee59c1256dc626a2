// Package rpc models the three external RPC tools from spec.md §4.9 as
// Go interfaces and types: DataOps, DataOpsInfo, and DataOpsBatch.
// Per spec.md §1/§6/§9, the transport (line-delimited JSON or
// websocket framing) is an external collaborator and out of scope —
// this package is enough for a future transport to type-check against,
// never a listener of its own.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"go.dataops.dev/dao"
	"go.dataops.dev/model"
	"go.dataops.dev/secmodel"
)

// Operation names the four Unified CRUD operations DataOps dispatches.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Format names the accepted encodings for a DataOps request's raw data.
type Format string

const (
	FormatDict Format = "dict"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ModelEngine is the untyped façade crud.Engine[T] implements for every
// T, letting Tool dispatch by model name across many typed engines
// without itself being generic. crud.Engine[T]'s Raw methods and
// Describe satisfy this interface directly.
type ModelEngine interface {
	Describe() model.Descriptor
	CreateRaw(ctx context.Context, data dao.Entity, secCtx *secmodel.SecurityContext) (dao.Entity, error)
	ReadRaw(ctx context.Context, id, bindingName string, secCtx *secmodel.SecurityContext) (dao.Entity, error)
	UpdateRaw(ctx context.Context, id string, patch dao.Entity, secCtx *secmodel.SecurityContext) (dao.Entity, error)
	DeleteRaw(ctx context.Context, id string, secCtx *secmodel.SecurityContext) error
	FindRaw(ctx context.Context, q dao.Query, limit, skip int, secCtx *secmodel.SecurityContext) ([]dao.Entity, error)
}

// Registry resolves a model name to its ModelEngine.
type Registry struct {
	engines map[string]ModelEngine
}

func NewRegistry() *Registry { return &Registry{engines: map[string]ModelEngine{}} }

// Register binds modelName to engine, overwriting any prior binding.
func (r *Registry) Register(modelName string, engine ModelEngine) {
	r.engines[modelName] = engine
}

func (r *Registry) resolve(modelName string) (ModelEngine, error) {
	e, ok := r.engines[modelName]
	if !ok {
		return nil, fmt.Errorf("rpc: no model registered as %q", modelName)
	}
	return e, nil
}

// Models lists every registered model name.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	return names
}

// DataOpsRequest is the argument set for the dataops tool. RawData and
// Format are used together when the caller's data arrives pre-encoded
// (e.g. over a JSON transport carrying an embedded YAML blob); Data is
// used directly when the caller already has a dao.Entity (FormatDict).
// For read/update/delete, the instance id is carried in Data["id"].
type DataOpsRequest struct {
	Operation   Operation
	Model       string
	Data        dao.Entity
	RawData     []byte
	Format      Format
	BindingName string
	Context     *secmodel.SecurityContext
}

// Response is the dataops/dataops_info/dataops_batch response envelope:
// exactly one of Data or Error is populated, mirroring spec.md §6's
// "responses carry either data or error."
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Tool implements the three RPC tools over a Registry of model engines.
type Tool struct {
	Registry *Registry
}

func NewTool(registry *Registry) *Tool { return &Tool{Registry: registry} }

// decodeData resolves req.Data, parsing RawData per Format when Data
// itself wasn't already supplied as a dict.
func decodeData(req DataOpsRequest) (dao.Entity, error) {
	if req.Data != nil {
		return req.Data, nil
	}
	if len(req.RawData) == 0 {
		return dao.Entity{}, nil
	}
	var out dao.Entity
	switch req.Format {
	case FormatYAML:
		if err := yaml.Unmarshal(req.RawData, &out); err != nil {
			return nil, fmt.Errorf("rpc: parse yaml data: %w", err)
		}
	default: // FormatJSON, FormatDict (raw data shouldn't occur for dict, but JSON is a safe default)
		if err := json.Unmarshal(req.RawData, &out); err != nil {
			return nil, fmt.Errorf("rpc: parse json data: %w", err)
		}
	}
	return out, nil
}

// DataOps dispatches to the Unified CRUD engine for req.Model, returning
// the instance data (sanitized per §7, via crud's Raw methods) or an
// error — never panicking through to a transport (spec.md §7's "the
// three RPC tools never throw through the transport").
func (t *Tool) DataOps(ctx context.Context, req DataOpsRequest) Response {
	engine, err := t.Registry.resolve(req.Model)
	if err != nil {
		return Response{Error: err.Error()}
	}
	data, err := decodeData(req)
	if err != nil {
		return Response{Error: err.Error()}
	}

	switch req.Operation {
	case OpCreate:
		out, err := engine.CreateRaw(ctx, data, req.Context)
		return toResponse(out, err)
	case OpRead:
		id, _ := data["id"].(string)
		out, err := engine.ReadRaw(ctx, id, req.BindingName, req.Context)
		return toResponse(out, err)
	case OpUpdate:
		id, _ := data["id"].(string)
		patch := dao.Entity{}
		for k, v := range data {
			if k == "id" {
				continue
			}
			patch[k] = v
		}
		out, err := engine.UpdateRaw(ctx, id, patch, req.Context)
		return toResponse(out, err)
	case OpDelete:
		id, _ := data["id"].(string)
		err := engine.DeleteRaw(ctx, id, req.Context)
		if err != nil {
			return Response{Error: err.Error()}
		}
		return Response{Data: dao.Entity{"id": id, "deleted": true}}
	default:
		return Response{Error: fmt.Sprintf("rpc: unknown operation %q", req.Operation)}
	}
}

// DataOpsInfo returns the descriptor for modelName, or every registered
// model's descriptor when modelName is empty.
func (t *Tool) DataOpsInfo(modelName string) Response {
	if modelName == "" {
		descriptors := make([]model.Descriptor, 0, len(t.Registry.engines))
		for _, name := range t.Registry.Models() {
			engine, _ := t.Registry.resolve(name)
			descriptors = append(descriptors, engine.Describe())
		}
		return Response{Data: descriptors}
	}
	engine, err := t.Registry.resolve(modelName)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Data: engine.Describe()}
}

// BatchItem is one entry of a dataops_batch request.
type BatchItem struct {
	Operation Operation
	Model     string
	Data      dao.Entity
	Context   *secmodel.SecurityContext
}

// BatchResponse reports per-item results; in transaction mode the first
// failure aborts iteration (spec.md §4.9: "the response includes
// {completed, failed}").
type BatchResponse struct {
	Results   []Response `json:"results"`
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
}

// DataOpsBatch iterates items, dispatching each through DataOps. In
// transaction mode the first failure stops iteration; outside
// transaction mode every item runs regardless of earlier failures.
func (t *Tool) DataOpsBatch(ctx context.Context, items []BatchItem, transaction bool) BatchResponse {
	out := BatchResponse{Results: make([]Response, 0, len(items))}
	for _, item := range items {
		resp := t.DataOps(ctx, DataOpsRequest{
			Operation: item.Operation,
			Model:     item.Model,
			Data:      item.Data,
			Context:   item.Context,
		})
		out.Results = append(out.Results, resp)
		if resp.Error != "" {
			out.Failed++
			if transaction {
				break
			}
			continue
		}
		out.Completed++
	}
	return out
}

func toResponse(data dao.Entity, err error) Response {
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Data: data}
}
