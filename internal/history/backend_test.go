package history

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fpang/kimixchange/internal/media"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]dynamotypes.AttributeValue
}

func itemKey(key map[string]dynamotypes.AttributeValue) string {
	pk := key["PK"].(*dynamotypes.AttributeValueMemberS).Value
	sk := key["SK"].(*dynamotypes.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items == nil {
		f.items = make(map[string]map[string]dynamotypes.AttributeValue)
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// exerciseBackend runs the common contract every Backend must satisfy.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, found, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Put(ctx, "k", []byte(`[1,2,3]`)))
	require.NoError(t, b.Put(ctx, "k", []byte(`[4]`)))
	got, found, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[4]`, string(got))

	// The store works end to end on top of it.
	s := NewStore(b)
	_, err = s.Append(ctx, rec(1))
	require.NoError(t, err)
	assert.Len(t, NewStore(b).Load(ctx), 1)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "history")
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	exerciseBackend(t, b)

	_, err = os.Stat(filepath.Join(dir, StorageKey+".json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must be cleaned up")
	}
}

func TestS3Backend(t *testing.T) {
	fake := &fakeS3{}
	exerciseBackend(t, NewS3Backend(fake, "bucket", "history"))
	_, ok := fake.objects["bucket/history/"+StorageKey+".json"]
	assert.True(t, ok)
}

func TestDynamoBackend(t *testing.T) {
	fake := &fakeDynamo{}
	b, err := NewDynamoBackend(fake, "table")
	require.NoError(t, err)
	exerciseBackend(t, b)

	item := fake.items["HISTORY#"+StorageKey+"|LIST"]
	require.NotNil(t, item)
	enc := item["encoding"].(*dynamotypes.AttributeValueMemberS).Value
	assert.Equal(t, "zstd", enc)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, BackendConfig{Kind: KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(ctx, BackendConfig{Kind: KindFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)

	_, err = Open(ctx, BackendConfig{Kind: KindS3})
	assert.ErrorContains(t, err, "bucket")

	_, err = Open(ctx, BackendConfig{Kind: KindDynamoDB})
	assert.ErrorContains(t, err, "table")

	_, err = Open(ctx, BackendConfig{Kind: "redis"})
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("KIMIXCHANGE_HISTORY_BACKEND", "S3")
	t.Setenv("KIMIXCHANGE_HISTORY_BUCKET", "my-bucket")
	t.Setenv("KIMIXCHANGE_HISTORY_DIR", "/tmp/kx")
	t.Setenv("KIMIXCHANGE_HISTORY_PREFIX", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, KindS3, cfg.Kind)
	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, "/tmp/kx", cfg.Dir)
	assert.Equal(t, "history", cfg.Prefix)
}

func TestExport(t *testing.T) {
	r := Record{
		ID:        "01HZY",
		SourceURL: media.EncodeDataURL("image/jpeg", []byte("src")),
		TargetURL: media.EncodeDataURL("image/png", []byte("tgt")),
		ResultURL: media.EncodeDataURL("image/png", []byte("result")),
		Timestamp: 1_700_000_000_000,
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, []Record{r}))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	zr.RegisterDecompressor(zipMethodZstd, func(r io.Reader) io.ReadCloser {
		d, err := zstd.NewReader(r)
		require.NoError(t, err)
		return d.IOReadCloser()
	})

	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = data
	}

	assert.Equal(t, []byte("src"), files["01HZY/source.jpg"])
	assert.Equal(t, []byte("tgt"), files["01HZY/target.png"])
	assert.Equal(t, []byte("result"), files["01HZY/result.png"])

	var index []exportEntry
	require.NoError(t, json.Unmarshal(files["index.json"], &index))
	require.Len(t, index, 1)
	assert.Equal(t, "01HZY/result.png", index[0].Result)
}

func TestExport_BadPayload(t *testing.T) {
	err := Export(io.Discard, []Record{{ID: "x", SourceURL: "nope"}})
	assert.ErrorIs(t, err, media.ErrNotDataURL)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", ExtensionFor("image/png"))
	assert.Equal(t, ".jpg", ExtensionFor("image/jpeg"))
	assert.Equal(t, ".bin", ExtensionFor("application/octet-stream"))
}
