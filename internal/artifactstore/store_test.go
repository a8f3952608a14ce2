package artifactstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory stand-in for the S3 API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucketPrefix := aws.ToString(in.Bucket) + "/"
	var contents []types.Object
	for full := range f.objects {
		key, ok := strings.CutPrefix(full, bucketPrefix)
		if !ok || !strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			continue
		}
		contents = append(contents, types.Object{Key: aws.String(key)})
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func storeImplementations(t *testing.T) map[string]Store {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"file":   fs,
		"memory": NewMemoryStore(),
		"s3":     newS3Store(newFakeS3(), "artifacts", "/comfy/output/"),
	}
}

func TestStore_PutGetList(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "wan_remote_42.pt", []byte("artifact-42")))
			require.NoError(t, store.Put(ctx, "wan_remote_43.pt", []byte("artifact-43")))
			require.NoError(t, store.Put(ctx, "notes.txt", []byte("other")))

			data, err := store.Get(ctx, "wan_remote_42.pt")
			require.NoError(t, err)
			assert.Equal(t, []byte("artifact-42"), data)

			require.NoError(t, store.Put(ctx, "wan_remote_42.pt", []byte("overwritten")))
			data, err = store.Get(ctx, "wan_remote_42.pt")
			require.NoError(t, err)
			assert.Equal(t, []byte("overwritten"), data)

			names, err := store.List(ctx, "wan_remote_*.pt")
			require.NoError(t, err)
			assert.Equal(t, []string{"wan_remote_42.pt", "wan_remote_43.pt"}, names)

			all, err := store.List(ctx, "*")
			require.NoError(t, err)
			assert.True(t, slices.Contains(all, "notes.txt"))
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "missing.pt")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_InvalidNames(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			for _, bad := range []string{"", ".", "..", "../escape.pt", "sub/dir.pt", `win\path.pt`} {
				assert.ErrorIs(t, store.Put(ctx, bad, []byte("x")), ErrInvalidName, bad)
				_, err := store.Get(ctx, bad)
				assert.ErrorIs(t, err, ErrInvalidName, bad)
			}
		})
	}
}

func TestFileStore_LeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "a.pt", []byte("data")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.pt", entries[0].Name())
}

func TestFileStore_CanceledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Put(ctx, "a.pt", []byte("data")), context.Canceled)
}

func TestS3Store_KeysUsePathPrefix(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "bucket", "runs/")

	require.NoError(t, store.Put(context.Background(), "x.pt", []byte("1")))
	_, ok := fake.objects["bucket/runs/x.pt"]
	assert.True(t, ok)
}

func TestS3Store_PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = io.ErrUnexpectedEOF
	store := newS3Store(fake, "bucket", "")

	err := store.Put(context.Background(), "x.pt", []byte("1"))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
