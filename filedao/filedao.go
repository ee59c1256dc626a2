// Package filedao implements the file backend adapter on an S3-compatible
// object store: every entity is one JSON object keyed by
// "{collection}/{id}.json", with Find/Query served by a listed-prefix
// scan plus in-process filtering since object stores have no native
// query language.
package filedao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"go.dataops.dev/dao"
	"go.dataops.dev/dlog"
	"go.dataops.dev/uuidv7"
)

// Config describes the S3-compatible endpoint and bucket this adapter
// owns, one collection per key prefix within the bucket.
type Config struct {
	URL        string
	Region     string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Collection string
}

// Adapter is a dao.DAO over one S3-compatible bucket prefix. It has no
// native query engine: Find/Count/FindOne scan every object under the
// collection prefix and filter in process, so callers should expect
// this backend to fit reference data and archives rather than
// high-cardinality collections queried at interactive latency.
type Adapter struct {
	cfg      Config
	client   *s3.Client
	uploader *manager.Uploader
	log      *logrus.Entry
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, log: dlog.ForStorage("filedao", cfg.Collection)}
}

func (a *Adapter) Connect(ctx context.Context) error {
	if !dao.ValidIdentifier(a.cfg.Collection) {
		return fmt.Errorf("filedao: invalid collection identifier %q", a.cfg.Collection)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(a.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(a.cfg.AccessKey, a.cfg.SecretKey, "")),
		config.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: a.cfg.URL, SigningRegion: region}, nil
			})),
	)
	if err != nil {
		return fmt.Errorf("filedao: load aws configuration: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = true })
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.cfg.Bucket)}); err != nil {
		if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.cfg.Bucket)}); err != nil {
			return fmt.Errorf("filedao: ensure bucket %s: %w", a.cfg.Bucket, err)
		}
	}
	a.client = client
	a.uploader = manager.NewUploader(client)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.cfg.Bucket)})
	return err
}
func (a *Adapter) Health(ctx context.Context) error { return a.TestConnection(ctx) }

// CreateIndexes is a no-op: object stores have no index concept, every
// Find scans the collection prefix regardless of which fields a query
// names.
func (a *Adapter) CreateIndexes(ctx context.Context, indexes []dao.IndexSpec) error { return nil }

func (a *Adapter) objectKey(id string) string {
	return fmt.Sprintf("%s/%s.json", a.cfg.Collection, id)
}

func (a *Adapter) Create(ctx context.Context, entity dao.Entity) (string, error) {
	id, _ := entity["id"].(string)
	if id == "" {
		id = uuidv7.New()
	}
	entity = cloneEntity(entity)
	entity["id"] = id
	body, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("filedao: marshal entity: %w", err)
	}
	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(a.objectKey(id)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", fmt.Errorf("filedao: put object: %w", err)
	}
	return id, nil
}

func (a *Adapter) Update(ctx context.Context, id string, patch dao.Entity) (bool, error) {
	existing, err := a.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	for k, v := range patch {
		existing[k] = v
	}
	existing["id"] = id
	if _, err := a.Create(ctx, existing); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := a.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.objectKey(id)),
	}); err != nil {
		return false, fmt.Errorf("filedao: delete object: %w", err)
	}
	return true, nil
}

func (a *Adapter) FindByID(ctx context.Context, id string) (dao.Entity, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(a.objectKey(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("filedao: get object: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("filedao: read object body: %w", err)
	}
	var entity dao.Entity
	if err := json.Unmarshal(body, &entity); err != nil {
		return nil, fmt.Errorf("filedao: unmarshal entity: %w", err)
	}
	return entity, nil
}

func (a *Adapter) Exists(ctx context.Context, id string) (bool, error) {
	entity, err := a.FindByID(ctx, id)
	return entity != nil, err
}

func (a *Adapter) FindOne(ctx context.Context, q dao.Query) (dao.Entity, error) {
	results, err := a.Find(ctx, q, 1, 0)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// Find lists every object under the collection prefix and filters
// in-process via dao.MatchesInMemory, the only option available
// without a native query language.
func (a *Adapter) Find(ctx context.Context, q dao.Query, limit, skip int) ([]dao.Entity, error) {
	entities, err := a.scanCollection(ctx)
	if err != nil {
		return nil, err
	}
	var matched []dao.Entity
	for _, e := range entities {
		if dao.MatchesInMemory(q, e) {
			matched = append(matched, e)
		}
	}
	if skip >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (a *Adapter) Count(ctx context.Context, q dao.Query) (int64, error) {
	results, err := a.Find(ctx, q, 0, 0)
	return int64(len(results)), err
}

func (a *Adapter) scanCollection(ctx context.Context) ([]dao.Entity, error) {
	prefix := a.cfg.Collection + "/"
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	var out []dao.Entity
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("filedao: list objects: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(obj.Key), prefix), ".json")
			entity, err := a.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if entity != nil {
				out = append(out, entity)
			}
		}
	}
	return out, nil
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
	return nil, fmt.Errorf("filedao: raw read queries are not supported; object stores have no query language")
}

func (a *Adapter) RawWriteQuery(ctx context.Context, query string, params map[string]any) (int64, error) {
	return 0, fmt.Errorf("filedao: raw write queries are not supported; use Create/Update")
}

func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	out, err := a.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) { return nil, nil }
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{a.cfg.Collection}, nil
}
func (a *Adapter) GetModelInfo(ctx context.Context, model string) (map[string]any, error) {
	return map[string]any{"bucket": a.cfg.Bucket, "prefix": a.cfg.Collection + "/", "backend": "file"}, nil
}
func (a *Adapter) GetModelSchema(ctx context.Context, model string) (map[string]any, error) {
	return a.GetModelInfo(ctx, model)
}
func (a *Adapter) GetModelFields(ctx context.Context, model string) ([]string, error) {
	return nil, nil
}
func (a *Adapter) GetModelIndexes(ctx context.Context, model string) ([]dao.IndexSpec, error) {
	return nil, nil
}

func cloneEntity(e dao.Entity) dao.Entity {
	out := make(dao.Entity, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	return out
}
