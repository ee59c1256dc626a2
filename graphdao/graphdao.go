// Package graphdao implements the graph backend adapter on top of
// github.com/neo4j/neo4j-go-driver/v5, the teacher's own graph driver
// (db/repository/neo4j.go). It stands in for the gRPC client a
// Dgraph-style store would use: predicates become Cypher node
// properties under one label per entity collection, and the mutation
// language (set/delete-then-set per field, blank-node-style create) is
// mapped onto MERGE/SET statements instead of DQL.
package graphdao

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/uuidv7"
)

// Direction selects which edges GetNodeDegree counts.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
	DirectionAll Direction = "all"
)

// Config describes how to reach a Neo4j (or Neo4j-compatible) server.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// GraphDAO is the dao.DAO contract plus the graph-native traversal
// operations spec.md §4.4 names explicitly.
type GraphDAO interface {
	dao.DAO
	KHopQuery(ctx context.Context, start string, k int, edgeTypes []string) ([]dao.Entity, error)
	ShortestPath(ctx context.Context, from, to string, maxDepth int) ([]string, error)
	FindConnectedComponents(ctx context.Context, nodeType string) ([][]string, error)
	GetNodeDegree(ctx context.Context, id string, direction Direction) (int64, error)
}

// Adapter is the GraphDAO implementation. One Adapter instance binds to
// one entity collection (Neo4j label); the registry factory creates one
// per bound model.
type Adapter struct {
	cfg    Config
	label  string
	driver neo4j.DriverWithContext
	log    *logrus.Entry
}

// NewAdapter constructs a graph adapter for the given collection
// (rendered as the node label, capitalized to follow Cypher
// convention) without connecting.
func NewAdapter(cfg Config, collection string) *Adapter {
	return &Adapter{
		cfg:   cfg,
		label: labelFor(collection),
		log:   dlog.ForStorage("graphdao", collection),
	}
}

func labelFor(collection string) string {
	if collection == "" {
		return "Entity"
	}
	return strings.ToUpper(collection[:1]) + collection[1:]
}

func (a *Adapter) Connect(ctx context.Context) error {
	driver, err := neo4j.NewDriverWithContext(a.cfg.URI, neo4j.BasicAuth(a.cfg.Username, a.cfg.Password, ""))
	if err != nil {
		return fmt.Errorf("graphdao: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graphdao: connectivity check: %w", err)
	}
	a.driver = driver
	a.log.Infof("connected to graph store")
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.driver == nil {
		return nil
	}
	return a.driver.Close(ctx)
}

func (a *Adapter) TestConnection(ctx context.Context) error {
	return a.driver.VerifyConnectivity(ctx)
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.TestConnection(ctx)
}

func (a *Adapter) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return a.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: a.cfg.Database})
}

// CreateIndexes synthesizes a schema from declared indexes: `id` always
// gets a uniqueness constraint (the nearest Cypher idiom to Dgraph's
// mandatory exact index on id), exact/hash-kind fields get range
// indexes, fulltext-kind fields get a Neo4j fulltext index. Failures to
// alter are logged and do not abort, matching the spec's "schema
// already matches" tolerance.
func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error {
	session := a.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	statements := []string{
		fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", a.label),
	}
	for _, idx := range indexes {
		if !dao.ValidIdentifier(idx.Field) {
			a.log.Warnf("skipping index on invalid field identifier %q", idx.Field)
			continue
		}
		switch idx.Kind {
		case "fulltext", "text":
			statements = append(statements, fmt.Sprintf(
				"CREATE FULLTEXT INDEX IF NOT EXISTS FOR (n:%s) ON EACH [n.%s]", a.label, idx.Field))
		default:
			statements = append(statements, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.%s)", a.label, idx.Field))
		}
	}

	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			a.log.Warnf("schema statement failed (tolerated): %v", err)
		}
	}
	return nil
}

// Create MERGEs a new node under the adapter's label. List/dict fields
// are serialized to JSON strings since Cypher properties must be
// scalars or homogeneous arrays — the scalar-JSON choice spec.md makes
// for its graph store, carried over unchanged (see DESIGN.md).
func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
	}
	props, err := encodeProps(entity)
	if err != nil {
		return "", err
	}
	props["id"] = id

	session := a.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props RETURN n.id", a.label)
		_, err := tx.Run(ctx, query, map[string]any{"id": id, "props": props})
		return nil, err
	})
	if err != nil {
		return "", fmt.Errorf("graphdao: create: %w", err)
	}
	return id, nil
}

// Update performs the spec's two-step per-field mutation: a clearing
// write to null followed by a set to the new value, on purpose
// non-atomic between the two statements (see DESIGN.md's Open Question
// decision to preserve this behavior rather than silently fix it).
func (a *Adapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	props, err := encodeProps(patch)
	if err != nil {
		return false, err
	}

	session := a.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	matched := false
	for field, value := range props {
		if !dao.ValidIdentifier(field) {
			a.log.Warnf("skipping update of invalid field identifier %q", field)
			continue
		}
		_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			clearQuery := fmt.Sprintf("MATCH (n:%s {id: $id}) SET n.%s = null RETURN n.id", a.label, field)
			res, err := tx.Run(ctx, clearQuery, map[string]any{"id": id})
			if err != nil {
				return nil, err
			}
			if res.Next(ctx) {
				matched = true
			}
			return nil, res.Err()
		})
		if err != nil {
			return matched, fmt.Errorf("graphdao: update clear %s: %w", field, err)
		}

		_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			setQuery := fmt.Sprintf("MATCH (n:%s {id: $id}) SET n.%s = $value RETURN n.id", a.label, field)
			_, err := tx.Run(ctx, setQuery, map[string]any{"id": id, "value": value})
			return nil, err
		})
		if err != nil {
			return matched, fmt.Errorf("graphdao: update set %s: %w", field, err)
		}
	}
	return matched, nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	session := a.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	deleted := false
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf("MATCH (n:%s {id: $id}) DETACH DELETE n RETURN count(n) as c", a.label)
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			deleted = true
		}
		return nil, res.Err()
	})
	if err != nil {
		return false, fmt.Errorf("graphdao: delete: %w", err)
	}
	return deleted, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var found dao.Entity
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n", a.label)
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			node, _ := res.Record().Get("n")
			found = decodeNode(node)
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graphdao: find by id: %w", err)
	}
	return found, nil
}

func (a *Adapter) Exists(ctx context.Context, id string) (bool, error) {
	entity, err := a.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return entity != nil, nil
}

func (a *Adapter) FindOne(ctx context.Context, q dao.Query) (dao.Entity, error) {
	results, err := a.Find(ctx, q, 1, 0)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// Find translates the dao.Query into a Cypher WHERE clause. Only field
// identifiers that pass dao.ValidIdentifier are interpolated; every
// value is bound as a parameter.
func (a *Adapter) Find(ctx context.Context, q dao.Query, limit, skip int) ([]dao.Entity, error) {
	where, params, err := cypherWhere(q, "n")
	if err != nil {
		return nil, err
	}
	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf("MATCH (n:%s)", a.label)
	if where != "" {
		query += " WHERE " + where
	}
	query += " RETURN n SKIP $skip"
	params["skip"] = skip
	if limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = limit
	}

	var out []dao.Entity
	_, err = session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			node, _ := res.Record().Get("n")
			out = append(out, decodeNode(node))
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graphdao: find: %w", err)
	}
	return out, nil
}

func (a *Adapter) Count(ctx context.Context, q dao.Query) (int64, error) {
	where, params, err := cypherWhere(q, "n")
	if err != nil {
		return 0, err
	}
	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf("MATCH (n:%s)", a.label)
	if where != "" {
		query += " WHERE " + where
	}
	query += " RETURN count(n) as c"

	var count int64
	_, err = session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			v, _ := res.Record().Get("c")
			count, _ = v.(int64)
		}
		return nil, res.Err()
	})
	return count, err
}

func (a *Adapter) BulkCreate(ctx context.Context, entities []dao.Entity) ([]string, error) {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		id, err := a.Create(ctx, e)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *Adapter) BulkUpdate(ctx context.Context, updates map[string]dao.Entity) (int, error) {
	n := 0
	for id, patch := range updates {
		ok, err := a.Update(ctx, id, patch)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (a *Adapter) BulkDelete(ctx context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		ok, err := a.Delete(ctx, id)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (a *Adapter) RawReadQuery(ctx context.Context, query string, params map[string]any) ([]dao.Entity, error) {
	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var out []dao.Entity
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			record := res.Record().AsMap()
			out = append(out, dao.Entity(record))
		}
		return nil, res.Err()
	})
	return out, err
}

func (a *Adapter) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := a.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var affected int64
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		counters := summary.Counters()
		affected = int64(counters.NodesCreated() + counters.NodesDeleted() + counters.PropertiesSet())
		return nil, nil
	})
	return affected, err
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	entities, err := a.RawReadQuery(ctx, "SHOW DATABASES YIELD name RETURN name", nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if name, ok := e["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Database}, nil
}

func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{a.label}, nil
}

func (a *Adapter) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return map[string]any{"label": a.label, "backend": "graph"}, nil
}

func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}

func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	entities, err := a.RawReadQuery(ctx, fmt.Sprintf("MATCH (n:%s) RETURN n LIMIT 1", a.label), nil)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	fields := make([]string, 0, len(entities[0]))
	for k := range entities[0] {
		fields = append(fields, k)
	}
	return fields, nil
}

func (a *Adapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return nil, nil
}

// KHopQuery traverses up to k hops from start, optionally constrained
// to edgeTypes, returning every distinct reachable node.
func (a *Adapter) KHopQuery(ctx context.Context, start string, k int, edgeTypes []string) ([]dao.Entity, error) {
	rel := relTypeClause(edgeTypes)
	query := fmt.Sprintf(
		"MATCH (start {id: $id})-[%s*1..%d]->(n) RETURN DISTINCT n", rel, k)

	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var out []dao.Entity
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": start})
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			node, _ := res.Record().Get("n")
			out = append(out, decodeNode(node))
		}
		return nil, res.Err()
	})
	return out, err
}

// ShortestPath returns the ordered node ids on the shortest path, using
// Cypher's native shortestPath operator.
func (a *Adapter) ShortestPath(ctx context.Context, from, to string, maxDepth int) ([]string, error) {
	query := fmt.Sprintf(
		"MATCH path = shortestPath((a {id: $from})-[*1..%d]->(b {id: $to})) RETURN [node IN nodes(path) | node.id] as path",
		maxDepth)

	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var path []string
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"from": from, "to": to})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			raw, _ := res.Record().Get("path")
			if list, ok := raw.([]any); ok {
				for _, v := range list {
					if s, ok := v.(string); ok {
						path = append(path, s)
					}
				}
			}
		}
		return nil, res.Err()
	})
	return path, err
}

// FindConnectedComponents enumerates nodes of nodeType (or every node
// under the adapter's label if empty), then performs DFS over expanded
// neighbors client-side, tracking visited ids — matching the spec's
// instruction to compute components by traversal rather than a native
// graph algorithm the store doesn't expose.
func (a *Adapter) FindConnectedComponents(ctx context.Context, nodeType string) ([][]string, error) {
	label := a.label
	if nodeType != "" {
		label = labelFor(nodeType)
	}

	adjacency, err := a.loadAdjacency(ctx, label)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(adjacency))
	var components [][]string
	for id := range adjacency {
		if visited[id] {
			continue
		}
		var component []string
		stack := []string{id}
		for len(stack) > 0 {
			n := len(stack) - 1
			cur := stack[n]
			stack = stack[:n]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			component = append(component, cur)
			stack = append(stack, adjacency[cur]...)
		}
		components = append(components, component)
	}
	return components, nil
}

func (a *Adapter) loadAdjacency(ctx context.Context, label string) (map[string][]string, error) {
	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	adjacency := make(map[string][]string)
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf("MATCH (n:%s) OPTIONAL MATCH (n)-[]-(m) RETURN n.id as id, collect(m.id) as neighbors", label)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			record := res.Record()
			id, _ := record.Get("id")
			neighborsRaw, _ := record.Get("neighbors")
			var neighbors []string
			if list, ok := neighborsRaw.([]any); ok {
				for _, v := range list {
					if s, ok := v.(string); ok && s != "" {
						neighbors = append(neighbors, s)
					}
				}
			}
			if idStr, ok := id.(string); ok {
				adjacency[idStr] = neighbors
			}
		}
		return nil, res.Err()
	})
	return adjacency, err
}

// GetNodeDegree counts forward and/or reverse edges for id, per
// direction.
func (a *Adapter) GetNodeDegree(ctx context.Context, id string, direction Direction) (int64, error) {
	var query string
	switch direction {
	case DirectionOut:
		query = "MATCH (n {id: $id})-[r]->() RETURN count(r) as c"
	case DirectionIn:
		query = "MATCH (n {id: $id})<-[r]-() RETURN count(r) as c"
	default:
		query = "MATCH (n {id: $id})-[r]-() RETURN count(r) as c"
	}

	session := a.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	var degree int64
	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			v, _ := res.Record().Get("c")
			degree, _ = v.(int64)
		}
		return nil, res.Err()
	})
	return degree, err
}

func relTypeClause(edgeTypes []string) string {
	if len(edgeTypes) == 0 {
		return ""
	}
	valid := make([]string, 0, len(edgeTypes))
	for _, t := range edgeTypes {
		if dao.ValidIdentifier(t) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return ""
	}
	return ":" + strings.Join(valid, "|")
}

// encodeProps serializes list/dict-valued fields to JSON strings, since
// Cypher node properties must be scalars or homogeneous primitive
// arrays — the same scalar-JSON representation spec.md's Dgraph-backed
// design uses.
func encodeProps(entity dao.Entity) (map[string]any, error) {
	props := make(map[string]any, len(entity))
	for k, v := range entity {
		switch v.(type) {
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("graphdao: encode field %q: %w", k, err)
			}
			props[k] = string(encoded)
		default:
			props[k] = v
		}
	}
	return props, nil
}

// decodeNode reverses encodeProps: any string property that looks like
// JSON (leading '[' or '{') is parsed back, unwrapping one level of
// double-encoding if present.
func decodeNode(raw any) dao.Entity {
	node, ok := raw.(neo4j.Node)
	if !ok {
		return nil
	}
	out := make(dao.Entity, len(node.Props))
	for k, v := range node.Props {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	s, ok := v.(string)
	if !ok || len(s) == 0 {
		return v
	}
	if s[0] != '[' && s[0] != '{' {
		return v
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return v
	}
	if inner, ok := decoded.(string); ok {
		var doubleDecoded any
		if err := json.Unmarshal([]byte(inner), &doubleDecoded); err == nil {
			return doubleDecoded
		}
	}
	return decoded
}

// cypherWhere translates a dao.Query into a parameterized Cypher WHERE
// fragment against alias, returning empty string for an unconstrained
// query.
func cypherWhere(q dao.Query, alias string) (string, map[string]any, error) {
	params := make(map[string]any)
	clause, err := renderClause(q, alias, params, 0)
	if err != nil {
		return "", nil, err
	}
	return clause, params, nil
}

func renderClause(q dao.Query, alias string, params map[string]any, depth int) (string, error) {
	if q.IsZero() {
		return "", nil
	}
	if !dao.ValidIdentifier(q.Field()) && q.Kind() != "and" && q.Kind() != "or" {
		return "", fmt.Errorf("graphdao: invalid field identifier %q", q.Field())
	}
	switch q.Kind() {
	case "eq":
		key := paramKey(params, q.Field(), depth)
		params[key] = q.Value()
		return fmt.Sprintf("%s.%s = $%s", alias, q.Field(), key), nil
	case "cmp":
		key := paramKey(params, q.Field(), depth)
		params[key] = q.Value()
		op := cypherOp(q.Op())
		return fmt.Sprintf("%s.%s %s $%s", alias, q.Field(), op, key), nil
	case "in":
		key := paramKey(params, q.Field(), depth)
		params[key] = q.Values()
		return fmt.Sprintf("%s.%s IN $%s", alias, q.Field(), key), nil
	case "regex":
		key := paramKey(params, q.Field(), depth)
		params[key] = q.Pattern()
		return fmt.Sprintf("%s.%s =~ $%s", alias, q.Field(), key), nil
	case "and", "or":
		parts := make([]string, 0, len(q.Clauses()))
		for i, c := range q.Clauses() {
			part, err := renderClause(c, alias, params, depth*10+i+1)
			if err != nil {
				return "", err
			}
			if part != "" {
				parts = append(parts, "("+part+")")
			}
		}
		sep := " AND "
		if q.Kind() == "or" {
			sep = " OR "
		}
		return strings.Join(parts, sep), nil
	default:
		return "", fmt.Errorf("graphdao: unsupported query kind %q", q.Kind())
	}
}

func paramKey(params map[string]any, field string, depth int) string {
	key := fmt.Sprintf("p_%s_%d", field, depth)
	for i := 1; ; i++ {
		if _, exists := params[key]; !exists {
			return key
		}
		key = fmt.Sprintf("p_%s_%d_%d", field, depth, i)
	}
}

func cypherOp(op dao.CmpOp) string {
	switch op {
	case dao.OpGT:
		return ">"
	case dao.OpGTE:
		return ">="
	case dao.OpLT:
		return "<"
	case dao.OpLTE:
		return "<="
	case dao.OpNE:
		return "<>"
	default:
		return "="
	}
}
