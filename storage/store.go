package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when no object exists under a key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
	Metadata     map[string]string
}

// Location identifies where objects live; it is reported by the health endpoint.
type Location struct {
	Backend  string `json:"backend"`
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"`
	Region   string `json:"region,omitempty"`
}

// ObjectStore is the blob store behind the upload gateway.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, meta map[string]string) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Remove(ctx context.Context, key string) error
	// List returns at most limit objects under prefix; limit <= 0 means all.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	PublicURL(key string) string
	Ping(ctx context.Context) error
	Location() Location
}

// BucketStats summarizes a set of objects.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	ByClass      map[string]int64 // bytes per content class
}

// Summarize totals objects by size and content class.
func Summarize(objects []ObjectInfo) BucketStats {
	stats := BucketStats{ByClass: map[string]int64{}}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		stats.ByClass[ContentClass(obj.ContentType, obj.Key)] += obj.Size
	}
	return stats
}

// ContentClass returns the top-level MIME class of an object, falling back
// to its extension when the content type is unknown.
func ContentClass(contentType, key string) string {
	if i := strings.IndexByte(contentType, '/'); i > 0 {
		return contentType[:i]
	}
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".aac", ".ogg":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".zip", ".rar", ".7z":
		return "archive"
	default:
		return "other"
	}
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
