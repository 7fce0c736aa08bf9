// Package discover finds model documents under a directory.
package discover

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/cellanalyser/internal/format"
)

// IgnoreFile holds gitignore-style patterns, read from the root directory,
// for model documents that should never be analysed. It applies inside and
// outside git checkouts alike.
const IgnoreFile = ".cellanalyserignore"

// FileEntry represents a discovered model document.
type FileEntry struct {
	Path   string // Relative to root
	Format string
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"build":        {},
	"dist":         {},
	"testdata":     {},
}

// selector decides which files under a root are model documents to analyse.
type selector struct {
	formats map[string]struct{}
	// tracked is nil outside a git checkout.
	tracked map[string]struct{}
	ignores []*ignore.GitIgnore
}

func newSelector(root string, formats []string) *selector {
	s := &selector{formats: make(map[string]struct{}, len(formats))}
	for _, f := range formats {
		s.formats[f] = struct{}{}
	}

	s.tracked = gitFiles(root)
	names := []string{IgnoreFile}
	if s.tracked == nil {
		names = append(names, ".gitignore")
	}
	for _, name := range names {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, name)); err == nil {
			s.ignores = append(s.ignores, gi)
		}
	}
	return s
}

func (s *selector) skipDir(name string) bool {
	_, skip := skipDirs[name]
	return skip || hidden(name)
}

// formatOf returns the format of the document at rel, or "" when it is not
// selected.
func (s *selector) formatOf(rel string) string {
	slashed := filepath.ToSlash(rel)
	if s.tracked != nil {
		if _, ok := s.tracked[slashed]; !ok {
			return ""
		}
	}
	for _, gi := range s.ignores {
		if gi.MatchesPath(slashed) {
			return ""
		}
	}

	name := format.ForExtension(filepath.Ext(rel))
	if name == "" {
		return ""
	}
	if len(s.formats) > 0 {
		if _, ok := s.formats[name]; !ok {
			return ""
		}
	}
	return name
}

// Files discovers model documents under root, sorted by path. Hidden files,
// symlinks and files ignored by git are skipped; outside a git checkout
// root's .gitignore is honoured instead. If formats is non-empty, only
// documents of one of the listed formats are returned.
func Files(root string, formats []string) ([]FileEntry, error) {
	s := newSelector(root, formats)

	var results []FileEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil, path == root:
			return nil
		case d.IsDir():
			if s.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		case hidden(d.Name()), d.Type()&fs.ModeSymlink != 0:
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if name := s.formatOf(rel); name != "" {
			results = append(results, FileEntry{Path: rel, Format: name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// gitFiles lists the tracked and untracked-but-not-ignored files of the git
// checkout at root, or returns nil when root is not one.
func gitFiles(root string) map[string]struct{} {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, entry := range bytes.Split(out, []byte{0}) {
		if len(entry) > 0 {
			files[string(entry)] = struct{}{}
		}
	}
	return files
}
