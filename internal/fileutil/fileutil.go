package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotDirectory      = errors.New("not a directory")
)

// FileTask is one file to upload
type FileTask struct {
	Path    string // absolute local path
	RelPath string // repository path, always forward slashes
	Size    int64
}

// Checksum returns the xxHash digest of data as hex
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// RelativePath returns path relative to root in repository form:
// forward slashes only, no leading separator.
func RelativePath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path for %q: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of %q", path, root)
	}

	rel = filepath.ToSlash(rel)
	rel = strings.ReplaceAll(rel, `\`, "/")
	return strings.TrimLeft(rel, "/"), nil
}

// SkipFunc is told about an entry below the root that could not be read.
// The walk continues without it.
type SkipFunc func(relPath string, err error)

// DiscoverFiles is Discover without skip reporting
func DiscoverFiles(root string, excludePatterns []string) ([]FileTask, error) {
	return Discover(root, excludePatterns, nil)
}

// Discover walks root and returns every regular file beneath it in
// lexical walk order. Paths whose relative form matches one of the exclude
// patterns are skipped; a matching directory is not descended into.
// An unreadable root is an error. Unreadable entries below it are passed
// to onSkip and left out.
func Discover(root string, excludePatterns []string, onSkip SkipFunc) ([]FileTask, error) {
	excludeRegexps, err := compilePatterns(excludePatterns)
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %q: %w", root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, classify(root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	files := []FileTask{}
	skip := func(rel string, err error) {
		if onSkip != nil {
			onSkip(rel, err)
		}
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if path == absRoot {
			return err
		}

		rel, relErr := RelativePath(absRoot, path)
		if relErr != nil {
			return relErr
		}

		if err != nil {
			skip(rel, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if matchAny(excludeRegexps, rel) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks, sockets and devices are not uploaded
		if !d.Type().IsRegular() {
			return nil
		}
		if matchAny(excludeRegexps, rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			skip(rel, err)
			return nil
		}

		files = append(files, FileTask{
			Path:    path,
			RelPath: rel,
			Size:    fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, classify(root, err)
	}

	return files, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func classify(root string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", root, ErrDirectoryNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w: %v", root, ErrPermissionDenied, err)
	default:
		return fmt.Errorf("failed to walk directory %q: %w", root, err)
	}
}
