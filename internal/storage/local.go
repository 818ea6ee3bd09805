package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// URLPrefix is the path local uploads are served under.
const URLPrefix = "/uploads/"

// LocalStore writes assets under a root directory on disk.
type LocalStore struct {
	root   string
	logger *logrus.Logger
}

// NewLocalStore creates the songs and covers folders under root.
func NewLocalStore(root string, logger *logrus.Logger) (*LocalStore, error) {
	if root == "" {
		root = "./uploads"
	}
	for _, kind := range []Kind{KindSong, KindCover} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create upload folder: %w", err)
		}
	}
	return &LocalStore{root: root, logger: logger}, nil
}

// Name identifies the backend in health output.
func (s *LocalStore) Name() string { return "local" }

// Root returns the directory assets live in.
func (s *LocalStore) Root() string { return s.root }

// Save copies r into a new file. On copy failure the partial file is removed.
func (s *LocalStore) Save(_ context.Context, kind Kind, originalName string, r io.Reader, _ int64, _ string) (Object, error) {
	base := objectName(kind, originalName, time.Now())
	key := base

	// O_EXCL never overwrites; bump the name if it is somehow taken.
	var destFile *os.File
	var destPath string
	for counter := 1; ; counter++ {
		destPath = filepath.Join(s.root, filepath.FromSlash(key))
		f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			destFile = f
			break
		}
		if !os.IsExist(err) {
			return Object{}, fmt.Errorf("failed to create destination file: %w", err)
		}
		ext := filepath.Ext(base)
		key = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), counter, ext)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, r); err != nil {
		os.Remove(destPath)
		return Object{}, fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":  key,
		"kind": kind,
	}).Debug("Stored media file")

	return Object{Key: key, URL: URLPrefix + key}, nil
}

// Delete removes the file for key. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ping checks the root folder is still there.
func (s *LocalStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// Handler serves stored files under URLPrefix.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.root)))
}

// resolve maps key to a path inside root, rejecting traversal.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}
