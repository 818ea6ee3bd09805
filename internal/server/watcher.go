package server

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"moodtune/internal/admin"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// settleDelay gives a copy in progress time to finish before ingestion.
const settleDelay = 500 * time.Millisecond

// startInboxWatcher watches the inbox root and every mood folder.
func (s *APIServer) startInboxWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	s.ingestWG.Add(1)
	go func() {
		defer s.ingestWG.Done()
		s.watchFiles(watcher)
	}()

	if err := s.addDirectoryToWatcher(s.inbox.Root()); err != nil {
		return err
	}

	s.logger.WithField("inbox", s.inbox.Root()).Info("Inbox watcher started")
	return nil
}

// addDirectoryToWatcher adds root and its mood folders, skipping processed/.
func (s *APIServer) addDirectoryToWatcher(root string) error {
	processed := filepath.Join(s.inbox.Root(), admin.ProcessedDir)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path == processed {
			return filepath.SkipDir
		}
		return s.watcher.Add(path)
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (s *APIServer) watchFiles(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.handleFileEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("Inbox watcher error")
		}
	}
}

// handleFileEvent filters events down to new audio files in mood folders.
func (s *APIServer) handleFileEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if err := s.addDirectoryToWatcher(event.Name); err != nil {
			s.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
			return
		}
		s.logger.WithField("directory", event.Name).Info("Watching new directory")
		return
	}

	if !s.inbox.IsCandidate(event.Name) {
		return
	}

	s.ingestWG.Add(1)
	go func(name string) {
		defer s.ingestWG.Done()

		timer := time.NewTimer(settleDelay)
		defer timer.Stop()
		select {
		case <-s.baseCtx.Done():
			return
		case <-timer.C:
		}
		s.handleNewFile(name)
	}(event.Name)
}

// handleNewFile ingests one inbox file. Duplicate events for a file already
// being ingested are dropped.
func (s *APIServer) handleNewFile(filePath string) {
	if s.baseCtx.Err() != nil {
		return
	}
	if _, busy := s.inFlight.LoadOrStore(filePath, struct{}{}); busy {
		return
	}
	defer s.inFlight.Delete(filePath)

	if _, err := os.Stat(filePath); err != nil {
		s.logger.WithField("file_path", filePath).Debug("Inbox file vanished before ingestion")
		return
	}

	song, err := s.inbox.IngestFile(s.baseCtx, filePath)
	if err != nil {
		s.logger.WithError(err).WithField("file_path", filePath).Error("Error ingesting inbox file")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"song_id": song.ID,
		"mood":    song.Mood,
	}).Debug("Inbox file ingested")
}

// waitForIngest blocks until the watcher loop and every pending ingestion
// have returned, or ctx is done.
func (s *APIServer) waitForIngest(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.ingestWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.WithError(ctx.Err()).Warn("Gave up waiting for inbox ingestion")
	}
}

// stopInboxWatcher closes the watcher (idempotent).
func (s *APIServer) stopInboxWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
