package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the store uses. *s3.Client
// satisfies it; tests substitute a fake.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps session snapshots in an S3 bucket, for deployments
// where a reconnecting client may land on a different server. Expiry is
// enforced on read: Load rejects snapshots older than the store's TTL,
// and a bucket lifecycle rule should reap the objects themselves.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := session.NewS3Store(s3.NewFromConfig(cfg), "my-bucket", "sessions/", 5*time.Minute)
type S3Store struct {
	client S3API
	bucket string
	prefix string
	ttl    time.Duration
}

// NewS3Store creates an S3-backed snapshot store. Keys are written as
// prefix + session id.
func NewS3Store(client S3API, bucket, prefix string, ttl time.Duration) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, ttl: ttl}
}

func (s *S3Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save uploads a snapshot. The expiresAt parameter is recorded in
// object metadata for operators; the authoritative TTL check happens in
// Load against SavedAt.
func (s *S3Store) Save(ctx context.Context, snap *Snapshot, expiresAt time.Time) error {
	data := snap.Marshal()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(snap.SessionID)),
		Body:   bytes.NewReader(data),
		Metadata: map[string]string{
			"treeline-expires-at": expiresAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("session: s3 save %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load downloads and decodes a snapshot.
func (s *S3Store) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: s3 load %s: %w", sessionID, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("session: s3 read %s: %w", sessionID, err)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 && time.Since(snap.SavedAt) > s.ttl {
		return nil, ErrNotFound
	}
	return snap, nil
}

// Delete removes a snapshot object.
func (s *S3Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(sessionID)),
	})
	if err != nil {
		return fmt.Errorf("session: s3 delete %s: %w", sessionID, err)
	}
	return nil
}

// Close is a no-op; the S3 client is owned by the caller.
func (s *S3Store) Close() error {
	return nil
}
