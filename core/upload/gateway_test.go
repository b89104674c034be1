package upload

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"beatmarket/core/apperr"
	"beatmarket/storage"
)

type memObject struct {
	data []byte
	info storage.ObjectInfo
}

// memStore is an in-memory storage.ObjectStore.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject
	puts    int
	putErr  error
}

func newMemStore() *memStore { return &memStore{objects: map[string]memObject{}} }

func (m *memStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string, meta map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return err
	}
	m.objects[key] = memObject{data: data, info: storage.ObjectInfo{
		Key: key, Size: int64(len(data)), ContentType: contentType,
		LastModified: time.Now(), Metadata: meta,
	}}
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.info, nil
}

func (m *memStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	_, info, err := m.Get(ctx, key)
	return info, err
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) List(_ context.Context, prefix string, limit int) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PublicURL(key string) string { return "https://cdn.test/" + key }
func (m *memStore) Ping(context.Context) error   { return nil }
func (m *memStore) Location() storage.Location   { return storage.Location{Backend: "memory"} }

func newFile(name, contentType string, data []byte) *File {
	return &File{Name: name, ContentType: contentType, Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func newTestGateway(store *memStore) *Gateway {
	g := NewGateway(store, 16, 64)
	g.newID = func() string { return "fixed-id" }
	return g
}

func TestStoreRejectsBeforeWrite(t *testing.T) {
	cases := []struct {
		name    string
		policy  func(*Gateway) Policy
		file    *File
		message string
	}{
		{"missing", func(g *Gateway) Policy { return g.Images }, nil, "No image file provided"},
		{"wrong class", func(g *Gateway) Policy { return g.Images }, newFile("a.mp3", "audio/mpeg", []byte("abc")),
			"Invalid image file type. Please upload an image file."},
		{"audio as image", func(g *Gateway) Policy { return g.Audio }, newFile("a.png", "image/png", []byte("abc")),
			"Invalid audio file type. Please upload an audio file."},
		{"too large", func(g *Gateway) Policy { return g.Images }, newFile("a.png", "image/png", make([]byte, 17)),
			"Image file too large. Maximum size is 16 B."},
		{"empty", func(g *Gateway) Policy { return g.Audio }, newFile("a.mp3", "audio/mpeg", nil), "The audio file is empty"},
		{"kit text", func(g *Gateway) Policy { return g.Kits }, newFile("a.txt", "text/plain", []byte("abc")),
			"Invalid sound kit file type. Please upload a sound kit file."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			g := newTestGateway(store)
			_, err := g.Store(context.Background(), tc.policy(g), tc.file)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			if got := apperr.Message(err, ""); got != tc.message {
				t.Errorf("message = %q, want %q", got, tc.message)
			}
			if store.puts != 0 {
				t.Errorf("store written %d times before rejection", store.puts)
			}
		})
	}
}

func TestStoreWritesUnderFolder(t *testing.T) {
	store := newMemStore()
	g := newTestGateway(store)

	sf, err := g.Store(context.Background(), g.Audio, newFile("Beat.MP3", "audio/mpeg; charset=binary", []byte("data")))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if sf.Path != "audio/fixed-id.mp3" || sf.ID != "fixed-id.mp3" {
		t.Errorf("path/id = %q/%q", sf.Path, sf.ID)
	}
	if sf.PublicURL != "https://cdn.test/audio/fixed-id.mp3" {
		t.Errorf("PublicURL = %q", sf.PublicURL)
	}
	if sf.ContentType != "audio/mpeg" || sf.OriginalName != "Beat.MP3" || sf.Size != 4 {
		t.Errorf("stored = %+v", sf)
	}
	obj := store.objects["audio/fixed-id.mp3"]
	if string(obj.data) != "data" || obj.info.Metadata[MetaOriginalName] != "Beat.MP3" {
		t.Errorf("object = %+v", obj)
	}
}

func TestStoreDistinctObjectsForSameBytes(t *testing.T) {
	store := newMemStore()
	g := NewGateway(store, 1<<20, 1<<20)

	a, err := g.Store(context.Background(), g.Images, newFile("a.png", "image/png", []byte("same")))
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Store(context.Background(), g.Images, newFile("a.png", "image/png", []byte("same")))
	if err != nil {
		t.Fatal(err)
	}
	if a.Path == b.Path || len(store.objects) != 2 {
		t.Errorf("paths %q and %q, %d objects", a.Path, b.Path, len(store.objects))
	}
}

func TestKitPolicyAcceptsZip(t *testing.T) {
	g := newTestGateway(newMemStore())
	sf, err := g.Store(context.Background(), g.Kits, newFile("drums.zip", "application/zip", []byte("PK")))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if sf.Path != "kits/fixed-id.zip" {
		t.Errorf("Path = %q", sf.Path)
	}
}

func TestStoreFailureIsStorageKind(t *testing.T) {
	store := newMemStore()
	store.putErr = io.ErrUnexpectedEOF
	g := newTestGateway(store)
	_, err := g.Store(context.Background(), g.Images, newFile("a.png", "image/png", []byte("x")))
	if !apperr.Is(err, apperr.KindStorage) {
		t.Fatalf("err = %v, want storage failure", err)
	}
	if apperr.Message(err, "") != "Failed to upload image" {
		t.Errorf("message = %q", apperr.Message(err, ""))
	}
}

func TestRetrieveAndRemove(t *testing.T) {
	store := newMemStore()
	g := newTestGateway(store)
	ctx := context.Background()
	sf, err := g.Store(ctx, g.Images, newFile("cover.jpg", "image/jpeg", []byte("jpeg")))
	if err != nil {
		t.Fatal(err)
	}

	body, info, err := g.Retrieve(ctx, sf.Path)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "jpeg" || info.OriginalName != "cover.jpg" || !info.UploadedAt.Equal(sf.UploadedAt.Truncate(time.Second)) {
		t.Errorf("retrieved %q %+v", data, info)
	}

	if err := g.Remove(ctx, sf.Path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := g.Remove(ctx, sf.Path); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("second Remove = %v, want not found", err)
	}
	if _, _, err := g.Retrieve(ctx, sf.Path); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Retrieve after remove = %v", err)
	}
}

func TestCleanPath(t *testing.T) {
	good := []string{"images/a.png", " audio/b.mp3 "}
	for _, p := range good {
		if _, err := CleanPath(p); err != nil {
			t.Errorf("CleanPath(%q) = %v", p, err)
		}
	}
	bad := []string{"", "/etc/passwd", "images/../secret", "images//a.png", `images\a.png`, "./a"}
	for _, p := range bad {
		if _, err := CleanPath(p); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("CleanPath(%q) = %v, want validation", p, err)
		}
	}
}

func TestList(t *testing.T) {
	store := newMemStore()
	g := NewGateway(store, 1<<20, 1<<20)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := g.Store(ctx, g.Images, newFile("a.png", "image/png", []byte("x"))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := g.Store(ctx, g.Audio, newFile("a.mp3", "audio/mpeg", []byte("x"))); err != nil {
		t.Fatal(err)
	}

	all, err := g.List(ctx, "", 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
	images, _ := g.List(ctx, "images/", 2)
	if len(images) != 2 {
		t.Fatalf("List images = %d", len(images))
	}
	for _, f := range images {
		if !strings.HasPrefix(f.PublicURL, "https://cdn.test/images/") || f.OriginalName != "a.png" {
			t.Errorf("listed %+v", f)
		}
	}
}

func TestSizeLimit(t *testing.T) {
	if got := sizeLimit(10 << 20); got != "10MB" {
		t.Errorf("sizeLimit = %q", got)
	}
	if got := sizeLimit(1536); got != "1.5 KB" {
		t.Errorf("sizeLimit = %q", got)
	}
}
