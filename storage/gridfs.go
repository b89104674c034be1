package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"beatmarket/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSStore keeps objects as GridFS files in the application database.
// Keys are stored as file names; the API serves them under /api/file/.
type GridFSStore struct {
	db         *mongo.Database
	bucket     *gridfs.Bucket
	files      *mongo.Collection
	name       string
	publicBase string
}

type gridFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Filename   string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
	Metadata   bson.M             `bson:"metadata,omitempty"`
}

// NewGridFSStore opens the bucket named cfg.MinioBucket in db.
func NewGridFSStore(db *mongo.Database, cfg *config.Config) (*GridFSStore, error) {
	name := cfg.MinioBucket
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(name))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket %s: %w", name, err)
	}
	return &GridFSStore{
		db:         db,
		bucket:     bucket,
		files:      db.Collection(name + ".files"),
		name:       name,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *GridFSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, meta map[string]string) error {
	md := bson.M{"contentType": contentType}
	for k, v := range meta {
		md[k] = v
	}
	up, err := s.bucket.OpenUploadStream(key, options.GridFSUpload().SetMetadata(md))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = up.SetWriteDeadline(deadline)
	}
	if _, err := io.Copy(up, io.LimitReader(r, size)); err != nil {
		_ = up.Abort()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := up.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *GridFSStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	f, err := s.find(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	stream, err := s.bucket.OpenDownloadStream(f.ID)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("get %s: %w", key, err)
	}
	return stream, f.info(), nil
}

func (s *GridFSStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	f, err := s.find(ctx, key)
	if err != nil {
		return ObjectInfo{}, err
	}
	return f.info(), nil
}

func (s *GridFSStore) Remove(ctx context.Context, key string) error {
	f, err := s.find(ctx, key)
	if err != nil {
		return err
	}
	if err := s.bucket.DeleteContext(ctx, f.ID); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *GridFSStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	filter := bson.M{}
	if prefix != "" {
		filter["filename"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "uploadDate", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	var files []gridFile
	if err := cur.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	out := make([]ObjectInfo, 0, len(files))
	for _, f := range files {
		out = append(out, f.info())
	}
	return out, nil
}

// PublicURL points at the API's own file route.
func (s *GridFSStore) PublicURL(key string) string {
	return s.publicBase + "/api/file/" + key
}

func (s *GridFSStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *GridFSStore) Location() Location {
	return Location{Backend: config.StorageGridFS, Bucket: s.name, Endpoint: s.db.Name()}
}

// find returns the newest file stored under key.
func (s *GridFSStore) find(ctx context.Context, key string) (*gridFile, error) {
	var f gridFile
	err := s.files.FindOne(ctx, bson.M{"filename": key},
		options.FindOne().SetSort(bson.D{{Key: "uploadDate", Value: -1}})).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return &f, nil
}

func (f *gridFile) info() ObjectInfo {
	info := ObjectInfo{
		Key:          f.Filename,
		Size:         f.Length,
		LastModified: f.UploadDate,
		ETag:         f.ID.Hex(),
		Metadata:     map[string]string{},
	}
	for k, v := range f.Metadata {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if k == "contentType" {
			info.ContentType = s
			continue
		}
		info.Metadata[k] = s
	}
	return info
}
