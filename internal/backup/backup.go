// Package backup ships encrypted snapshots of the reservations file to
// S3-compatible storage and restores them on demand.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("backup not configured: S3 bucket or credentials missing")
	ErrNoPassphrase  = errors.New("backup passphrase is required")
)

// keyStampLayout is fixed width so object keys sort chronologically. A
// random suffix keeps runs within the same millisecond apart.
const keyStampLayout = "2006-01-02T150405.000Z"

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Source is the data being backed up.
type Source interface {
	Snapshot() ([]byte, error)
	Replace(data []byte) (int, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3     S3Config
	Prefix string
	// Retain is how many snapshots to keep after a run; 0 keeps all.
	Retain int
}

// Object describes one stored snapshot.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Manager runs, lists, prunes and restores snapshots.
type Manager struct {
	cfg    Config
	src    Source
	client s3Client
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a manager. Without a bucket and credentials every
// operation returns ErrNotConfigured.
func NewManager(cfg Config, src Source, logger *slog.Logger) *Manager {
	m := &Manager{cfg: cfg, src: src, now: time.Now, logger: logger}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether S3 storage is available.
func (m *Manager) Configured() bool {
	return m.client != nil
}

// Run encrypts the current snapshot, uploads it and prunes old snapshots
// beyond Config.Retain.
func (m *Manager) Run(ctx context.Context, passphrase string) (Object, error) {
	if m.client == nil {
		return Object{}, ErrNotConfigured
	}
	if passphrase == "" {
		return Object{}, ErrNoPassphrase
	}

	plaintext, err := m.src.Snapshot()
	if err != nil {
		return Object{}, fmt.Errorf("snapshot: %w", err)
	}
	enc, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return Object{}, fmt.Errorf("encrypt: %w", err)
	}

	now := m.now().UTC()
	key := m.cfg.Prefix + "reservations-" + now.Format(keyStampLayout) + "-" + uuid.NewString()[:8] + ".json.enc"

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(enc),
		ContentLength: aws.Int64(int64(len(enc))),
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload to s3: %w", err)
	}
	m.logger.Info("backup uploaded", "key", key, "bytes", len(enc))

	if m.cfg.Retain > 0 {
		if _, err := m.Prune(ctx, m.cfg.Retain); err != nil {
			m.logger.Warn("backup prune failed", "error", err)
		}
	}

	return Object{Key: key, Size: int64(len(enc)), LastModified: now}, nil
}

// List returns stored snapshots under the configured prefix, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}

	var objects []Object
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Prefix: aws.String(m.cfg.Prefix),
	}
	for {
		out, err := m.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects: %w", err)
		}
		for _, o := range out.Contents {
			key := aws.ToString(o.Key)
			if !strings.HasSuffix(key, ".json.enc") {
				continue
			}
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}

	// Keys embed a sortable UTC timestamp.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })
	return objects, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted
// keys. Individual delete failures are logged and skipped.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	objects, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(objects) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, o := range objects[keep:] {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("failed to delete backup", "key", o.Key, "error", err)
			continue
		}
		deleted = append(deleted, o.Key)
	}
	return deleted, nil
}

// Restore downloads and decrypts the snapshot at key and replaces the
// current reservations with it. It returns the number of restored records.
func (m *Manager) Restore(ctx context.Context, key, passphrase string) (int, error) {
	if m.client == nil {
		return 0, ErrNotConfigured
	}
	if passphrase == "" {
		return 0, ErrNoPassphrase
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	enc, err := io.ReadAll(result.Body)
	if err != nil {
		return 0, fmt.Errorf("read backup: %w", err)
	}
	plaintext, err := Decrypt(enc, passphrase)
	if err != nil {
		return 0, err
	}

	n, err := m.src.Replace(plaintext)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}
	m.logger.Info("backup restored", "key", key, "reservations", n)
	return n, nil
}
