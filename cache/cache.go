package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store keeps rendered restaurant pages. page is the path below the
// restaurant root, "index" for the root itself.
type Store interface {
	Get(ctx context.Context, subdomain, page string) (string, bool)
	Set(ctx context.Context, subdomain, page, html string) error
	Clear(ctx context.Context, subdomain string) error
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// FileStore writes one HTML file per page under dir/<subdomain>/.
type FileStore struct {
	dir    string
	maxAge time.Duration
}

func NewFileStore(dir string, maxAge time.Duration) *FileStore {
	return &FileStore{dir: dir, maxAge: maxAge}
}

// Path returns the cache file path for a page.
func (f *FileStore) Path(subdomain, page string) string {
	hash := generateHash(subdomain + "/" + page)
	name := strings.ReplaceAll(page, "/", "_")
	return filepath.Join(f.dir, subdomain, fmt.Sprintf("%s_%s.html", name, hash))
}

func (f *FileStore) Get(_ context.Context, subdomain, page string) (string, bool) {
	path := f.Path(subdomain, page)

	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > f.maxAge {
		return "", false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(content), true
}

func (f *FileStore) Set(_ context.Context, subdomain, page, html string) error {
	if err := os.MkdirAll(filepath.Join(f.dir, subdomain), 0755); err != nil {
		return err
	}
	return os.WriteFile(f.Path(subdomain, page), []byte(html), 0644)
}

// Clear removes every cached page of a restaurant.
func (f *FileStore) Clear(_ context.Context, subdomain string) error {
	if subdomain == "" || strings.ContainsAny(subdomain, `/\.`) {
		return fmt.Errorf("invalid subdomain %q", subdomain)
	}
	return os.RemoveAll(filepath.Join(f.dir, subdomain))
}

// ClearOld removes cache files older than maxAge.
func (f *FileStore) ClearOld() error {
	return filepath.Walk(f.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		if time.Since(info.ModTime()) > f.maxAge {
			os.Remove(path)
		}
		return nil
	})
}
