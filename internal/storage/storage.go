package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind is the folder (or object prefix) an asset is stored under.
type Kind string

const (
	KindSong  Kind = "songs"
	KindCover Kind = "covers"
)

// Object describes a stored asset.
type Object struct {
	// Key identifies the object within the store, e.g. "songs/1700000000000.mp3".
	Key string
	// URL is either absolute or root-relative ("/uploads/...").
	URL string
}

// MediaStore persists uploaded song and cover files.
type MediaStore interface {
	Save(ctx context.Context, kind Kind, originalName string, r io.Reader, size int64, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
}

// Options selects and configures a media store.
type Options struct {
	Driver         string
	LocalPath      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	PublicURL      string
}

// New builds the store selected by opts.Driver.
func New(ctx context.Context, opts Options, logger *logrus.Logger) (MediaStore, error) {
	switch opts.Driver {
	case "", "local":
		return NewLocalStore(opts.LocalPath, logger)
	case "minio":
		return NewMinIOStore(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// objectName builds a timestamped name that keeps the original extension.
// The random suffix keeps names unique when saves share a millisecond, since
// object stores overwrite on put.
func objectName(kind Kind, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	return string(kind) + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + uuid.NewString() + ext
}
