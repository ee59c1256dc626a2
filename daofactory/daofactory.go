// Package daofactory resolves a storagekind.BackendBinding into a
// connected dao.DAO, generalizing the teacher's composite-repository,
// pick-a-backend-from-config pattern into an open, registerable
// lookup instead of one fixed struct of named fields.
package daofactory

import (
	"context"
	"fmt"
	"sync"

	"go.dataops.dev/cachedao"
	"go.dataops.dev/dao"
	"go.dataops.dev/documentdao"
	"go.dataops.dev/embedding"
	"go.dataops.dev/filedao"
	"go.dataops.dev/graphdao"
	"go.dataops.dev/relationaldao"
	"go.dataops.dev/storagekind"
	"go.dataops.dev/timeseriesdao"
	"go.dataops.dev/vectordao"
)

// Constructor builds a dao.DAO for one (binding, collection) pair.
// collection is the model's Path (table name, Neo4j label, Redis
// collection prefix, CouchDB database, S3 key prefix).
type Constructor func(binding storagekind.BackendBinding, collection string) (dao.DAO, error)

// Registry maps storage kinds to constructors and resolves bindings
// into connected adapters on demand. The zero Registry auto-registers
// the seven built-in adapters on first Register or Resolve via the same graceful
// defaulting the teacher's NewCompositeRepository applies per
// configured backend, generalized from a fixed struct of fields into
// an open map so callers can add backends this module doesn't ship.
type Registry struct {
	// Generator is used to construct vectordao adapters; a vector
	// binding resolved with no Generator set fails fast rather than
	// silently storing zero vectors.
	Generator embedding.Generator

	mu           sync.Mutex
	constructors map[storagekind.Kind]Constructor
	once         sync.Once
}

// NewRegistry constructs a Registry ready to resolve vector bindings
// against the given embedding generator (nil is fine for deployments
// with no vector-bound models).
func NewRegistry(generator embedding.Generator) *Registry {
	return &Registry{Generator: generator, constructors: map[storagekind.Kind]Constructor{}}
}

// Register installs or overrides the constructor for a storage kind.
// Registering before the first Resolve call takes precedence over the
// built-in default for that kind; the lazy auto-registration never
// clobbers an explicit Register.
func (r *Registry) Register(kind storagekind.Kind, ctor Constructor) {
	r.once.Do(r.registerDefaults)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.constructors == nil {
		r.constructors = map[storagekind.Kind]Constructor{}
	}
	r.constructors[kind] = ctor
}

// Resolve builds and connects a dao.DAO for binding, using collection
// as the backend-native table/label/database/prefix name.
func (r *Registry) Resolve(ctx context.Context, binding storagekind.BackendBinding, collection string) (dao.DAO, error) {
	r.once.Do(r.registerDefaults)

	r.mu.Lock()
	ctor, ok := r.constructors[binding.Kind]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("daofactory: no adapter registered for kind %q", binding.Kind)
	}

	d, err := ctor(binding, collection)
	if err != nil {
		return nil, fmt.Errorf("daofactory: construct %s adapter: %w", binding.Kind, err)
	}
	if err := d.Connect(ctx); err != nil {
		return nil, fmt.Errorf("daofactory: connect %s adapter: %w", binding.Kind, err)
	}
	return d, nil
}

// registerDefaults wires the constructors for the seven storage kinds
// this module ships adapters for. It runs once, lazily, on the first
// Register or Resolve call; it only installs constructors, and no
// backend is contacted until Resolve connects one.
func (r *Registry) registerDefaults() {
	r.registerDefault(storagekind.Graph, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		return graphdao.NewAdapter(graphdao.Config{
			URI:      b.DSN(),
			Username: b.Username,
			Password: b.Password,
			Database: b.Database,
		}, collection), nil
	})

	r.registerDefault(storagekind.Vector, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		if r.Generator == nil {
			return nil, fmt.Errorf("daofactory: vector binding %q requires an embedding.Generator", collection)
		}
		return vectordao.NewAdapter(vectordao.Config{
			ConnString: b.DSN(),
			Table:      collection,
			Dimension:  r.Generator.Dimension(),
		}, r.Generator), nil
	})

	r.registerDefault(storagekind.Relational, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		if mode, _ := b.Options["mode"].(string); mode == "fixed" {
			return relationaldao.NewFixedAdapter(relationaldao.FixedConfig{
				ConnString: b.DSN(),
				Table:      collection,
			}), nil
		}
		return relationaldao.NewAdapter(relationaldao.Config{
			ConnString: b.DSN(),
			Table:      collection,
		}), nil
	})

	r.registerDefault(storagekind.Timeseries, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		return timeseriesdao.NewAdapter(timeseriesdao.Config{
			ConnString: b.DSN(),
			Table:      collection,
		}), nil
	})

	r.registerDefault(storagekind.Cache, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		var indexFields []string
		if raw, ok := b.Options["index_fields"].([]string); ok {
			indexFields = raw
		}
		return cachedao.NewAdapter(cachedao.Config{
			RedisURL:    b.DSN(),
			Collection:  collection,
			IndexFields: indexFields,
		}), nil
	})

	r.registerDefault(storagekind.Document, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		return documentdao.NewAdapter(documentdao.Config{
			URL:      b.DSN(),
			Database: collection,
		}), nil
	})

	r.registerDefault(storagekind.File, func(b storagekind.BackendBinding, collection string) (dao.DAO, error) {
		bucket, _ := b.Options["bucket"].(string)
		if bucket == "" {
			bucket = b.Database
		}
		return filedao.NewAdapter(filedao.Config{
			URL:        b.DSN(),
			Region:     stringOption(b.Options, "region", "us-east-1"),
			AccessKey:  b.Username,
			SecretKey:  b.Password,
			Bucket:     bucket,
			Collection: collection,
		}), nil
	})
}

// registerDefault installs ctor for kind only if nothing is registered
// for it yet, so an explicit Register call made before the first
// Resolve/Register triggers registerDefaults wins over the built-in.
func (r *Registry) registerDefault(kind storagekind.Kind, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.constructors == nil {
		r.constructors = map[storagekind.Kind]Constructor{}
	}
	if _, exists := r.constructors[kind]; exists {
		return
	}
	r.constructors[kind] = ctor
}

func stringOption(opts map[string]any, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
