package crud

import (
	"sync"
	"time"

	"go.dataops.dev/dao"
)

// StorageOperation records one per-backend attempt an engine call made,
// for diagnostics and test assertions over fan-out order and rollback
// paths (spec.md §4.8).
type StorageOperation struct {
	StorageName string
	Operation   string
	Data        dao.Entity
	Status      string
	Error       string
	Result      any
	At          time.Time
}

// opLog is an append-only, clearable record of StorageOperations, one
// per Engine instance (spec.md §5: "not shared across instances").
type opLog struct {
	mu   sync.Mutex
	ops  []StorageOperation
}

func (l *opLog) record(op StorageOperation) {
	op.At = time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) ok(storageName, operation string, data dao.Entity, result any) {
	l.record(StorageOperation{StorageName: storageName, Operation: operation, Data: data, Status: "ok", Result: result})
}

func (l *opLog) failed(storageName, operation string, data dao.Entity, err error) {
	l.record(StorageOperation{StorageName: storageName, Operation: operation, Data: data, Status: "error", Error: err.Error()})
}

// Operations returns a copy of the recorded operations in append order.
func (l *opLog) Operations() []StorageOperation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]StorageOperation, len(l.ops))
	copy(out, l.ops)
	return out
}

// Clear empties the operations log.
func (l *opLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = nil
}
