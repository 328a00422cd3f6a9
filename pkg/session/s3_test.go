package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreSaveLoad(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "bucket", "sessions/", time.Hour)
	ctx := context.Background()

	snap := sampleSnapshot()
	snap.SavedAt = time.Now()
	if err := store.Save(ctx, snap, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := client.objects["sessions/"+snap.SessionID]; !ok {
		t.Fatal("object not written under prefixed key")
	}
	got, err := store.Load(ctx, snap.SessionID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SessionID != snap.SessionID || got.Seq != snap.Seq {
		t.Errorf("got session %q seq %d, want %q seq %d", got.SessionID, got.Seq, snap.SessionID, snap.Seq)
	}
}

func TestS3StoreMissing(t *testing.T) {
	store := NewS3Store(newFakeS3(), "bucket", "sessions/", time.Hour)
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestS3StoreTTLExpiry(t *testing.T) {
	store := NewS3Store(newFakeS3(), "bucket", "sessions/", time.Minute)
	ctx := context.Background()

	snap := sampleSnapshot()
	snap.SavedAt = time.Now().Add(-2 * time.Minute)
	if err := store.Save(ctx, snap, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Load(ctx, snap.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound for stale snapshot", err)
	}
}

func TestS3StoreDelete(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "bucket", "sessions/", time.Hour)
	ctx := context.Background()

	snap := sampleSnapshot()
	snap.SavedAt = time.Now()
	if err := store.Save(ctx, snap, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, snap.SessionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, snap.SessionID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after delete", err)
	}
}

func TestS3StoreErrors(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	store := NewS3Store(client, "bucket", "sessions/", time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, sampleSnapshot(), time.Now().Add(time.Hour)); err == nil {
		t.Error("expected error from failed put")
	}
	client.getErr = errors.New("throttled")
	if _, err := store.Load(ctx, "id"); err == nil {
		t.Error("expected error from failed get")
	} else if errors.Is(err, ErrNotFound) {
		t.Error("transport error must not map to ErrNotFound")
	}
}
