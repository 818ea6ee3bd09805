package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

const banner = "🎶 Mood Music API is running..."

// handleHome serves the prebuilt client from the static dir when one is
// present. Unknown paths fall back to index.html for client-side routing.
func (s *APIServer) handleHome(w http.ResponseWriter, r *http.Request) {
	staticDir := s.config.Server.StaticDir
	index := filepath.Join(staticDir, "index.html")

	if staticDir == "" || !fileExists(index) {
		if r.URL.Path != "/" {
			s.respondWithError(w, r, http.StatusNotFound, "Not found", nil)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(banner))
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if clean != "/" {
		candidate := filepath.Join(staticDir, filepath.FromSlash(clean))
		if fileExists(candidate) {
			http.ServeFile(w, r, candidate)
			return
		}
	}
	http.ServeFile(w, r, index)
}

func fileExists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
