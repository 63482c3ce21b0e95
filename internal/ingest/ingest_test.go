package ingest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	storage_go "github.com/supabase-community/storage-go"

	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/hash/md5"
	"github.com/JakeFAU/dealfeed-collector/internal/hash/sha256"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/supabase"
)

type fakeStore struct {
	objects   map[string][]byte
	uploads   []string
	types     []string
	listErr   error
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) List(_ context.Context, namespace string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var names []string
	for p := range s.objects {
		if len(p) > len(namespace)+1 && p[:len(namespace)+1] == namespace+"/" {
			names = append(names, p[len(namespace)+1:])
		}
	}
	return names, nil
}

func (s *fakeStore) Upload(_ context.Context, p string, data []byte, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.uploads = append(s.uploads, p)
	s.types = append(s.types, contentType)
	s.objects[p] = data
	return nil
}

func (s *fakeStore) PublicURL(p string) string {
	return "https://cdn.example/image-storage/" + p
}

func TestIngestUploadsOnceForIdenticalBytes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ing := New(Config{}, store, md5.New(), nil)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, []byte("photo-bytes"))
	require.NoError(t, err)
	second, err := ing.Ingest(ctx, []byte("photo-bytes"))
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.True(t, first.Uploaded)
	assert.False(t, second.Uploaded)
	assert.Len(t, store.uploads, 1)
	assert.Equal(t, []string{"image/jpeg"}, store.types)
	assert.Regexp(t, `^images/[0-9a-f]{32}\.jpg$`, first.Path)
	assert.Equal(t, "https://cdn.example/image-storage/"+first.Path, first.URL)
}

func TestIngestDistinctBytesGetDistinctPaths(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ing := New(Config{}, store, md5.New(), nil)

	a, err := ing.Ingest(context.Background(), []byte("a"))
	require.NoError(t, err)
	b, err := ing.Ingest(context.Background(), []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Path, b.Path)
	assert.Len(t, store.uploads, 2)
}

func TestAssetPathDependsOnlyOnBytes(t *testing.T) {
	t.Parallel()

	ing := New(Config{Namespace: "/media/", Extension: "png"}, newFakeStore(), sha256.New(), nil)
	a, err := ing.Asset([]byte("same"))
	require.NoError(t, err)
	b, err := ing.Asset([]byte("same"))
	require.NoError(t, err)
	assert.Equal(t, a.Path, b.Path)
	assert.Regexp(t, `^media/[0-9a-f]{64}\.png$`, a.Path)
}

func TestIngestUploadFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.uploadErr = errors.New("bucket unavailable")
	ing := New(Config{}, store, md5.New(), nil)

	ref, err := ing.Ingest(context.Background(), []byte("x"))
	require.ErrorIs(t, err, collector.ErrIngest)
	assert.Equal(t, collector.MediaReference{}, ref)
}

func TestIngestListFailureStillUploads(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.listErr = errors.New("list denied")
	ing := New(Config{}, store, md5.New(), nil)

	ref, err := ing.Ingest(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.True(t, ref.Uploaded)
	assert.Len(t, store.uploads, 1)
}

// bucketAPI mimics Supabase storage: listing is denied and a write to an
// existing path fails unless upsert is requested.
type bucketAPI struct {
	objects map[string][]byte
}

func (b *bucketAPI) ListFiles(string, string, storage_go.FileSearchOptions) ([]storage_go.FileObject, error) {
	return nil, errors.New("list denied")
}

func (b *bucketAPI) UploadFile(_ string, p string, data io.Reader, opts ...storage_go.FileOptions) (storage_go.FileUploadResponse, error) {
	upsert := len(opts) > 0 && opts[0].Upsert != nil && *opts[0].Upsert
	if _, ok := b.objects[p]; ok && !upsert {
		return storage_go.FileUploadResponse{}, errors.New("The resource already exists")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return storage_go.FileUploadResponse{}, err
	}
	b.objects[p] = body
	return storage_go.FileUploadResponse{}, nil
}

func (b *bucketAPI) GetPublicUrl(bucket string, p string, _ ...storage_go.UrlOptions) storage_go.SignedUrlResponse {
	return storage_go.SignedUrlResponse{SignedURL: "https://proj.supabase.co/storage/v1/object/public/" + bucket + "/" + p}
}

func TestIngestExistingSupabaseObjectWhenListFails(t *testing.T) {
	t.Parallel()

	api := &bucketAPI{objects: map[string][]byte{}}
	store, err := supabase.NewObjectStore(api, "image-storage")
	require.NoError(t, err)
	ing := New(Config{}, store, md5.New(), nil)

	asset, err := ing.Asset([]byte("jpeg bytes"))
	require.NoError(t, err)
	api.objects[asset.Path] = []byte("jpeg bytes")

	ref, err := ing.Ingest(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/image-storage/"+asset.Path, ref.URL)
	assert.Equal(t, asset.Digest, ref.Digest)
}

func TestIngestEmptyBytes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ing := New(Config{}, store, md5.New(), nil)
	_, err := ing.Ingest(context.Background(), nil)
	require.ErrorIs(t, err, collector.ErrNoMedia)
	assert.Empty(t, store.uploads)
}

type failingHasher struct{}

func (failingHasher) Hash([]byte) (string, error) { return "", errors.New("nope") }

func TestIngestHashFailure(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, newFakeStore(), failingHasher{}, nil).Ingest(context.Background(), []byte("x"))
	require.ErrorIs(t, err, collector.ErrIngest)
}
