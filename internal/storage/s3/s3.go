package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"coursebackup/internal/storage"
)

// Ensure S3Backend implements storage.Backend at compile time.
var _ storage.Backend = (*S3Backend)(nil)

// DefaultPrefix is used when Config.Prefix is empty.
const DefaultPrefix = "coursebackup"

// Config holds the configuration for an S3-compatible storage backend.
type Config struct {
	Bucket          string
	Prefix          string // object key prefix, defaults to DefaultPrefix
	Region          string
	Endpoint        string // custom endpoint for MinIO, R2 and similar stores
	AccessKeyID     string // optional, falls back to the AWS credential chain
	SecretAccessKey string
	StorageClass    string // e.g. "STANDARD", "STANDARD_IA"
	ForcePathStyle  bool
}

// S3Backend stores archives in an S3-compatible object store.
type S3Backend struct {
	storage.Named
	client       *s3.Client
	bucket       string
	prefix       string
	storageClass s3types.StorageClass
}

// New creates a new S3 storage backend from the given config.
func New(ctx context.Context, cfg Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	sc := s3types.StorageClassStandard
	if cfg.StorageClass != "" {
		sc = s3types.StorageClass(cfg.StorageClass)
	}

	return &S3Backend{
		client:       client,
		bucket:       cfg.Bucket,
		prefix:       prefix,
		storageClass: sc,
	}, nil
}

func (b *S3Backend) Type() string {
	return "s3"
}

func (b *S3Backend) Name() string {
	return b.NameOr(b.Type())
}

// objectKey returns the full object key for an archive.
// Layout: <prefix>/<set>/<fileName>
func (b *S3Backend) objectKey(set, fileName string) string {
	return path.Join(b.prefix, set, fileName)
}

// Upload stores archive data as an S3 object.
func (b *S3Backend) Upload(ctx context.Context, set string, fileName string, data io.Reader, size int64) (*storage.BackupMetadata, error) {
	key := b.objectKey(set, fileName)

	input := &s3.PutObjectInput{
		Bucket:       aws.String(b.bucket),
		Key:          aws.String(key),
		Body:         data,
		StorageClass: b.storageClass,
		ContentType:  aws.String("application/zip"),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("s3: failed to upload %s: %w", key, err)
	}

	return &storage.BackupMetadata{
		Key:      key,
		Set:      set,
		FileName: fileName,
		Size:     size,
	}, nil
}

// Download retrieves an archive object. Caller must close the reader.
func (b *S3Backend) Download(ctx context.Context, key string) (io.ReadCloser, *storage.BackupMetadata, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("s3: failed to download %s: %w", key, err)
	}

	set, fileName := parseKey(b.prefix, key)
	meta := &storage.BackupMetadata{
		Key:      key,
		Set:      set,
		FileName: fileName,
		Size:     aws.ToInt64(output.ContentLength),
	}
	if output.LastModified != nil {
		meta.CreatedAt = *output.LastModified
	}
	return output.Body, meta, nil
}

// List returns all archives of the given set, sorted newest-first.
func (b *S3Backend) List(ctx context.Context, set string) ([]storage.BackupMetadata, error) {
	prefix := path.Join(b.prefix, set) + "/"

	var backups []storage.BackupMetadata
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: failed to list objects with prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			_, fileName := parseKey(b.prefix, *obj.Key)
			if !strings.HasSuffix(fileName, storage.ArchiveExt) {
				continue
			}
			meta := storage.BackupMetadata{
				Key:      *obj.Key,
				Set:      set,
				FileName: fileName,
				Size:     aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				meta.CreatedAt = *obj.LastModified
			}
			backups = append(backups, meta)
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Delete removes an archive object.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: failed to delete %s: %w", key, err)
	}
	return nil
}

// parseKey splits <prefix>/<set>/<fileName> into set and fileName.
func parseKey(prefix, key string) (set, fileName string) {
	rel := strings.TrimPrefix(key, prefix+"/")
	parts := strings.SplitN(rel, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", rel
}
