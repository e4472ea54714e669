// Package s3 keeps pedigree revisions as objects in an S3-compatible bucket
// (AWS S3 or MinIO). Every save writes a new immutable object.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/aretw0/pedigree/pkg/core"
)

const (
	documentExt = ".json"
	imageExt    = ".svg"
)

// Config holds explicit construction parameters. OpenFromEnv fills it from
// the process environment.
type Config struct {
	Region          string
	Bucket          string
	Prefix          string // key prefix, e.g. "pedigrees/P0001"
	Endpoint        string // optional; enables a custom endpoint (e.g. MinIO)
	AccessKeyID     string // optional (falls back to default credentials chain)
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
	ReadOnly        bool
	Logger          *slog.Logger

	// HTTPClient overrides the transport used by the SDK.
	HTTPClient aws.HTTPClient
}

// Store implements core.VersionedStore on a bucket prefix.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	config Config

	mu       sync.Mutex
	persists int
	lastKey  string
}

// New creates an S3 store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		config: cfg,
	}, nil
}

// Environment variables:
//
//	PEDIGREE_S3_BUCKET=<bucket> (required)
//	PEDIGREE_S3_PREFIX=<prefix> (optional)
//	PEDIGREE_S3_REGION=<region> (default us-east-1)
//	PEDIGREE_S3_ENDPOINT=<url> (optional, for MinIO)
//	PEDIGREE_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)

// OpenFromEnv constructs an S3 store from process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	bucket := os.Getenv("PEDIGREE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("PEDIGREE_S3_BUCKET required for s3 store")
	}
	return New(ctx, Config{
		Bucket:    bucket,
		Prefix:    os.Getenv("PEDIGREE_S3_PREFIX"),
		Region:    os.Getenv("PEDIGREE_S3_REGION"),
		Endpoint:  os.Getenv("PEDIGREE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("PEDIGREE_S3_PATH_STYLE"), "true"),
	})
}

func (s *Store) versionsPrefix() string {
	return path.Join(s.prefix, "versions") + "/"
}

func (s *Store) key(id, ext string) string {
	return s.versionsPrefix() + id + ext
}

// newID orders lexically by creation time.
func newID(now time.Time) string {
	return fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.NewString()[:8])
}

// FetchDocument returns the newest revision, or "" when the prefix is empty.
func (s *Store) FetchDocument(ctx context.Context) (string, error) {
	ids, err := s.list(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return s.get(ctx, s.key(ids[len(ids)-1], documentExt))
}

// PersistDocument uploads the snapshot (if any) and then the document, so a
// listed revision always has its image in place.
func (s *Store) PersistDocument(ctx context.Context, text string, aux []byte) error {
	if s.config.ReadOnly {
		return core.ErrReadOnly
	}
	id := newID(time.Now())
	reason := core.ChangeReason(ctx, "save pedigree")

	if len(aux) > 0 {
		if err := s.put(ctx, s.key(id, imageExt), aux, "image/svg+xml", reason); err != nil {
			return fmt.Errorf("upload image: %w", err)
		}
	}
	if err := s.put(ctx, s.key(id, documentExt), []byte(text), "application/json", reason); err != nil {
		return fmt.Errorf("upload document: %w", err)
	}

	s.mu.Lock()
	s.persists++
	s.lastKey = s.key(id, documentExt)
	s.mu.Unlock()
	s.config.Logger.Debug("pedigree revision uploaded", "bucket", s.bucket, "id", id)
	return nil
}

// Versions lists revisions newest first.
func (s *Store) Versions(ctx context.Context) ([]core.Version, error) {
	ids, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]core.Version, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		v := core.Version{ID: ids[i]}
		if nanos, err := strconv.ParseInt(strings.SplitN(ids[i], "-", 2)[0], 10, 64); err == nil {
			v.Created = time.Unix(0, nanos)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// FetchVersion returns the text of one revision.
func (s *Store) FetchVersion(ctx context.Context, id string) (string, error) {
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q", core.ErrVersionNotFound, id)
	}
	return s.get(ctx, s.key(id, documentExt))
}

// Image returns the snapshot saved with a revision. A revision saved
// without one yields nil.
func (s *Store) Image(ctx context.Context, id string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(s.key(id, imageExt))})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) list(ctx context.Context) ([]string, error) {
	prefix := s.versionsPrefix()
	var ids []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix, ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		for _, obj := range out.Contents {
			k := aws.ToString(obj.Key)
			if !strings.HasSuffix(k, documentExt) {
				continue
			}
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(k, prefix), documentExt))
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", core.ErrVersionNotFound, key)
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), nil
}

func (s *Store) put(ctx context.Context, key string, body []byte, contentType, reason string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"reason": reason},
	})
	return err
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

// StoreState exposes internal state for observability.
type StoreState struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	ReadOnly bool   `json:"read_only"`
	Persists int    `json:"persists"`
	LastKey  string `json:"last_key,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{Bucket: s.bucket, Prefix: s.prefix, ReadOnly: s.config.ReadOnly, Persists: s.persists, LastKey: s.lastKey}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ core.VersionedStore = (*Store)(nil)
