package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"moodtune/internal/metadata"
	"moodtune/pkg/models"

	"github.com/sirupsen/logrus"
)

// ProcessedDir is the inbox sub-folder ingested files are moved to.
const ProcessedDir = "processed"

// ErrNoCover is returned when a file has no embedded art and no default
// cover is configured.
var ErrNoCover = errors.New("no embedded cover art and no default cover configured")

// InboxOptions configures folder-based ingestion.
type InboxOptions struct {
	Root            string
	DefaultLanguage string
	DefaultCover    string
	Origin          string
}

// Inbox ingests audio files dropped into <root>/<mood>/.
type Inbox struct {
	svc    *Service
	opts   InboxOptions
	logger *logrus.Logger
}

// NewInbox returns an inbox feeding s.
func (s *Service) NewInbox(opts InboxOptions) *Inbox {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "unknown"
	}
	return &Inbox{svc: s, opts: opts, logger: s.logger}
}

// Root returns the inbox directory.
func (in *Inbox) Root() string {
	return in.opts.Root
}

// EnsureLayout creates the inbox, one folder per mood and the processed folder.
func (in *Inbox) EnsureLayout() error {
	dirs := []string{filepath.Join(in.opts.Root, ProcessedDir)}
	for _, mood := range models.Moods {
		dirs = append(dirs, filepath.Join(in.opts.Root, mood.String()))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create inbox folder %s: %w", dir, err)
		}
	}
	return nil
}

// MoodFor returns the mood implied by the folder path sits in.
func (in *Inbox) MoodFor(path string) (models.Mood, bool) {
	rel, err := filepath.Rel(in.opts.Root, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", false
	}
	return models.ParseMood(parts[0])
}

// IsCandidate reports whether path is a visible audio file in a mood folder.
func (in *Inbox) IsCandidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	if !in.svc.extractor.IsAudioFile(path) {
		return false
	}
	_, ok := in.MoodFor(path)
	return ok
}

// IngestFile turns one inbox file into a song and moves the file to the
// processed folder.
func (in *Inbox) IngestFile(ctx context.Context, path string) (*models.Song, error) {
	mood, ok := in.MoodFor(path)
	if !ok {
		return nil, fmt.Errorf("%s is not inside a mood folder", path)
	}

	song, err := in.ingest(ctx, path, mood)
	if err != nil {
		return nil, err
	}

	dest, err := in.moveProcessed(path, mood)
	if err != nil {
		// The song exists; a later scan would ingest the file again.
		in.logger.WithError(err).WithField("file_path", path).Error("Failed to move ingested file")
	}

	in.svc.countIngest("inbox")
	in.logger.WithFields(logrus.Fields{
		"song_id":   song.ID,
		"title":     song.Title,
		"artist":    song.Artist,
		"mood":      song.Mood,
		"moved_to":  dest,
		"file_path": path,
	}).Info("Ingested song from inbox")
	return song, nil
}

func (in *Inbox) ingest(ctx context.Context, path string, mood models.Mood) (*models.Song, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	info, err := in.svc.extractor.Extract(file, name)
	if err != nil {
		return nil, err
	}

	cover, closeCover, err := in.coverFor(info.Picture)
	if err != nil {
		return nil, err
	}
	defer closeCover()

	record := &models.Song{
		Title:    info.Title,
		Artist:   info.Artist,
		Mood:     mood.String(),
		Language: in.opts.DefaultLanguage,
		Duration: info.Duration,
	}
	audio := &Upload{Name: name, Content: file, Size: stat.Size()}
	if err := in.svc.storeAndInsert(ctx, record, audio, cover, in.opts.Origin); err != nil {
		return nil, err
	}
	return record, nil
}

func (in *Inbox) coverFor(picture *metadata.Picture) (*Upload, func(), error) {
	if picture != nil {
		return &Upload{
			Name:    "cover" + picture.Ext,
			Content: bytes.NewReader(picture.Data),
			Size:    int64(len(picture.Data)),
		}, func() {}, nil
	}

	if in.opts.DefaultCover == "" {
		return nil, nil, ErrNoCover
	}
	f, err := os.Open(in.opts.DefaultCover)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open default cover: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return &Upload{
		Name:    filepath.Base(in.opts.DefaultCover),
		Content: f,
		Size:    stat.Size(),
	}, func() { f.Close() }, nil
}

func (in *Inbox) moveProcessed(path string, mood models.Mood) (string, error) {
	dir := filepath.Join(in.opts.Root, ProcessedDir, mood.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(dir, strconv.FormatInt(time.Now().UnixMilli(), 10)+"_"+filepath.Base(path))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Scan ingests every candidate already in the inbox using a worker pool and
// returns how many songs were added.
func (in *Inbox) Scan(ctx context.Context) (int64, error) {
	in.logger.WithField("inbox", in.opts.Root).Info("Scanning inbox")

	var wg sync.WaitGroup
	var added int64
	jobs := make(chan string, 100)

	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		go func() {
			for path := range jobs {
				if _, err := in.IngestFile(ctx, path); err != nil {
					in.logger.WithError(err).WithField("file_path", path).Error("Error ingesting inbox file")
				} else {
					atomic.AddInt64(&added, 1)
				}
				wg.Done()
			}
		}()
	}

	processed := filepath.Join(in.opts.Root, ProcessedDir)
	walkErr := filepath.Walk(in.opts.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Workers move files out while the walk is still running.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && path == processed {
			return filepath.SkipDir
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !info.IsDir() && in.IsCandidate(path) {
			wg.Add(1)
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	in.logger.WithField("songs_added", added).Info("Inbox scan complete")
	return added, walkErr
}
