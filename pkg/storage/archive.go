package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const stampLayout = "20060102T150405Z"

// UploadArchive keeps the raw files of each catalogue import on disk, laid
// out as <term>/<stamp>-<digest>/<name>. Identical uploads for a term share
// one entry.
type UploadArchive struct {
	baseDir string
}

// NewUploadArchive ensures the base directory exists and returns a handle.
func NewUploadArchive(baseDir string) (*UploadArchive, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &UploadArchive{baseDir: baseDir}, nil
}

// Store archives one upload and returns its reference. The files are written
// to a scratch directory first so a reader never sees a partial upload.
func (a *UploadArchive) Store(term string, at time.Time, files map[string][]byte) (string, error) {
	if strings.TrimSpace(term) == "" || len(files) == 0 {
		return "", fmt.Errorf("archive upload: term and files are required")
	}
	digest := digestFiles(files)
	termDir := a.resolve(term)
	if err := os.MkdirAll(termDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare term directory: %w", err)
	}
	if existing, ok := a.findDigest(termDir, digest); ok {
		return filepath.ToSlash(filepath.Join(filepath.Base(termDir), existing)), nil
	}

	scratch, err := os.MkdirTemp(termDir, ".incoming-")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch) //nolint:errcheck
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(scratch, filepath.Base(name)), data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	entry := at.UTC().Format(stampLayout) + "-" + digest
	if err := os.Rename(scratch, filepath.Join(termDir, entry)); err != nil {
		return "", fmt.Errorf("publish upload: %w", err)
	}
	return filepath.ToSlash(filepath.Join(filepath.Base(termDir), entry)), nil
}

// Open returns a read-only handle on one file of an archived upload.
func (a *UploadArchive) Open(ref, name string) (*os.File, error) {
	file, err := os.Open(filepath.Join(a.resolve(ref), filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("open archived file: %w", err)
	}
	return file, nil
}

// Uploads lists the references archived for term, oldest first.
func (a *UploadArchive) Uploads(term string) ([]string, error) {
	termDir := a.resolve(term)
	entries, err := os.ReadDir(termDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	refs := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			return "", false
		}
		return filepath.ToSlash(filepath.Join(filepath.Base(termDir), e.Name())), true
	})
	slices.Sort(refs)
	return refs, nil
}

// Prune removes uploads stamped before now-ttl and returns their references.
// Empty term directories are removed with them.
func (a *UploadArchive) Prune(ttl time.Duration, now time.Time) ([]string, error) {
	cutoff := now.Add(-ttl)
	terms, err := os.ReadDir(a.baseDir)
	if err != nil {
		return nil, fmt.Errorf("prune uploads: %w", err)
	}
	removed := make([]string, 0)
	for _, term := range terms {
		if !term.IsDir() {
			continue
		}
		refs, err := a.Uploads(term.Name())
		if err != nil {
			return removed, err
		}
		kept := 0
		for _, ref := range refs {
			stamped, ok := uploadTime(ref)
			if !ok || !stamped.Before(cutoff) {
				kept++
				continue
			}
			if err := os.RemoveAll(a.resolve(ref)); err != nil {
				return removed, fmt.Errorf("remove %s: %w", ref, err)
			}
			removed = append(removed, ref)
		}
		if kept == 0 {
			_ = os.Remove(a.resolve(term.Name()))
		}
	}
	return removed, nil
}

// Path exposes the on-disk location of ref.
func (a *UploadArchive) Path(ref string) string {
	return a.resolve(ref)
}

func (a *UploadArchive) findDigest(termDir, digest string) (string, bool) {
	entries, err := os.ReadDir(termDir)
	if err != nil {
		return "", false
	}
	match, ok := lo.Find(entries, func(e os.DirEntry) bool {
		return e.IsDir() && strings.HasSuffix(e.Name(), "-"+digest)
	})
	if !ok {
		return "", false
	}
	return match.Name(), true
}

func uploadTime(ref string) (time.Time, bool) {
	stamp, _, found := strings.Cut(filepath.Base(ref), "-")
	if !found {
		return time.Time{}, false
	}
	t, err := time.Parse(stampLayout, stamp)
	return t, err == nil
}

func digestFiles(files map[string][]byte) string {
	names := lo.Keys(files)
	slices.Sort(names)
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(filepath.Base(name)))
		h.Write([]byte{0})
		h.Write(files[name])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// resolve keeps every path inside baseDir; absolute and parent-relative
// names are re-rooted.
func (a *UploadArchive) resolve(ref string) string {
	clean := filepath.Clean("/" + filepath.ToSlash(ref))
	return filepath.Join(a.baseDir, filepath.FromSlash(clean))
}
