// Package upload validates and stores media files in the object store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"beatmarket/core/apperr"
	"beatmarket/logger"
	"beatmarket/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Object metadata keys written with every upload.
const (
	MetaOriginalName = "original-name"
	MetaUploadedAt   = "uploaded-at"
)

var uploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "beatmarket_uploads_total",
		Help: "File uploads by folder and result",
	},
	[]string{"folder", "result"},
)

// Policy says what may be stored in one folder.
type Policy struct {
	Folder   string   // key prefix, e.g. "images"
	Label    string   // "image" in "No image file provided"
	Classes  []string // allowed MIME top-level classes
	Types    []string // extra exact MIME types
	MaxBytes int64
}

func (p Policy) allows(contentType string) bool {
	class, _, _ := strings.Cut(contentType, "/")
	for _, c := range p.Classes {
		if class == c {
			return true
		}
	}
	for _, t := range p.Types {
		if contentType == t {
			return true
		}
	}
	return false
}

func (p Policy) article() string {
	if strings.ContainsRune("aeiou", rune(p.Label[0])) {
		return "an"
	}
	return "a"
}

// File is an incoming upload.
type File struct {
	Name        string // client file name
	ContentType string
	Size        int64
	Body        io.Reader
}

// StoredFile describes an object written by the gateway.
type StoredFile struct {
	ID           string    `json:"fileId"`
	Name         string    `json:"name"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	Path         string    `json:"path"`
	PublicURL    string    `json:"publicUrl"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Gateway stores uploads under per-folder policies.
type Gateway struct {
	store storage.ObjectStore
	now   func() time.Time
	newID func() string

	Images Policy
	Audio  Policy
	Kits   Policy
}

func NewGateway(store storage.ObjectStore, imageMaxBytes, audioMaxBytes int64) *Gateway {
	return &Gateway{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		Images: Policy{
			Folder: "images", Label: "image", Classes: []string{"image"}, MaxBytes: imageMaxBytes,
		},
		Audio: Policy{
			Folder: "audio", Label: "audio", Classes: []string{"audio"}, MaxBytes: audioMaxBytes,
		},
		Kits: Policy{
			Folder: "kits", Label: "sound kit", Classes: []string{"audio"},
			Types:    []string{"application/zip", "application/x-zip-compressed", "application/x-rar-compressed", "application/x-7z-compressed"},
			MaxBytes: audioMaxBytes,
		},
	}
}

// Check validates f against p without touching the store.
func (g *Gateway) Check(p Policy, f *File) error {
	if f == nil || f.Body == nil {
		return apperr.Validation("No %s file provided", p.Label)
	}
	if f.Size <= 0 {
		return apperr.Validation("The %s file is empty", p.Label)
	}
	if !p.allows(mediaType(f.ContentType)) {
		return apperr.Validation("Invalid %s file type. Please upload %s %s file.", p.Label, p.article(), p.Label)
	}
	if p.MaxBytes > 0 && f.Size > p.MaxBytes {
		return apperr.Validation("%s file too large. Maximum size is %s.", capitalize(p.Label), sizeLimit(p.MaxBytes))
	}
	return nil
}

// Store validates f and writes it as <folder>/<uuid><ext>. Identical bytes
// uploaded twice become two objects.
func (g *Gateway) Store(ctx context.Context, p Policy, f *File) (*StoredFile, error) {
	if err := g.Check(p, f); err != nil {
		uploadsTotal.WithLabelValues(p.Folder, "rejected").Inc()
		return nil, err
	}

	contentType := mediaType(f.ContentType)
	id := g.newID() + extension(f.Name, contentType)
	key := p.Folder + "/" + id
	uploadedAt := g.now()
	meta := map[string]string{
		MetaOriginalName: f.Name,
		MetaUploadedAt:   uploadedAt.Format(time.RFC3339),
	}
	if err := g.store.Put(ctx, key, f.Body, f.Size, contentType, meta); err != nil {
		uploadsTotal.WithLabelValues(p.Folder, "failed").Inc()
		return nil, apperr.Storage("Failed to upload "+p.Label, err)
	}
	uploadsTotal.WithLabelValues(p.Folder, "stored").Inc()
	logger.Info("[Upload] stored file",
		logger.String("path", key),
		logger.String("contentType", contentType),
		logger.Int64("size", f.Size))

	return &StoredFile{
		ID:           id,
		Name:         id,
		OriginalName: f.Name,
		ContentType:  contentType,
		Size:         f.Size,
		Path:         key,
		PublicURL:    g.store.PublicURL(key),
		UploadedAt:   uploadedAt,
	}, nil
}

// Retrieve opens the object at key. The caller closes the reader.
func (g *Gateway) Retrieve(ctx context.Context, key string) (io.ReadCloser, *StoredFile, error) {
	key, err := CleanPath(key)
	if err != nil {
		return nil, nil, err
	}
	body, info, err := g.store.Get(ctx, key)
	if err != nil {
		return nil, nil, storeError("retrieve", err)
	}
	return body, g.describe(info), nil
}

func (g *Gateway) Stat(ctx context.Context, key string) (*StoredFile, error) {
	key, err := CleanPath(key)
	if err != nil {
		return nil, err
	}
	info, err := g.store.Stat(ctx, key)
	if err != nil {
		return nil, storeError("retrieve", err)
	}
	return g.describe(info), nil
}

// Remove deletes the object at key; a missing object is NotFound.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	key, err := CleanPath(key)
	if err != nil {
		return err
	}
	if err := g.store.Remove(ctx, key); err != nil {
		return storeError("delete", err)
	}
	logger.Info("[Upload] removed file", logger.String("path", key))
	return nil
}

func (g *Gateway) List(ctx context.Context, prefix string, limit int) ([]StoredFile, error) {
	objects, err := g.store.List(ctx, prefix, limit)
	if err != nil {
		return nil, apperr.Storage("Failed to list files", err)
	}
	out := make([]StoredFile, 0, len(objects))
	for _, obj := range objects {
		out = append(out, *g.describe(obj))
	}
	return out, nil
}

func (g *Gateway) PublicURL(key string) string {
	return g.store.PublicURL(key)
}

func (g *Gateway) describe(info storage.ObjectInfo) *StoredFile {
	name := path.Base(info.Key)
	sf := &StoredFile{
		ID:           name,
		Name:         name,
		OriginalName: info.Metadata[MetaOriginalName],
		ContentType:  info.ContentType,
		Size:         info.Size,
		Path:         info.Key,
		PublicURL:    g.store.PublicURL(info.Key),
		UploadedAt:   info.LastModified,
	}
	if sf.OriginalName == "" {
		sf.OriginalName = name
	}
	if ts, err := time.Parse(time.RFC3339, info.Metadata[MetaUploadedAt]); err == nil {
		sf.UploadedAt = ts
	}
	return sf
}

// CleanPath validates an object key taken from a request.
func CleanPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", apperr.Validation("File path is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", apperr.Validation("Invalid file path")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", apperr.Validation("Invalid file path")
		}
	}
	return key, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return apperr.NotFoundf("File not found")
	}
	return apperr.Storage(fmt.Sprintf("Failed to %s file", op), err)
}

// mediaType strips parameters and lowercases a Content-Type header.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// extension keeps the client's extension when it is short and alphanumeric,
// otherwise it guesses one from the content type.
func extension(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) > 1 && len(ext) <= 10 && isAlnum(ext[1:]) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// sizeLimit renders a ceiling the way clients expect, e.g. "10MB".
func sizeLimit(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return storage.FormatSize(n)
}
