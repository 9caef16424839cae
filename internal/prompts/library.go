// Package prompts serves the voice-agent prompt templates that scenarios run
// against.
package prompts

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("prompts: not found")

var (
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)
	bulletPattern      = regexp.MustCompile("^\\s*[-*]\\s+`?([A-Za-z][A-Za-z0-9_]*)`?")
	headingPattern     = regexp.MustCompile(`^\s*#{1,6}\s+(.*)$`)
)

var promptExts = map[string]bool{".md": true, ".txt": true, ".prompt": true}

// Library reads prompt files from a directory.
type Library struct {
	dir string
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// List returns prompt file names in lexical order. A missing directory is an
// empty library.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("prompts: read directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if promptExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Count returns the number of prompts, or 0 when the directory is unreadable.
func (l *Library) Count() int {
	names, err := l.List()
	if err != nil {
		return 0
	}
	return len(names)
}

// Content returns the raw template.
func (l *Library) Content(name string) (string, error) {
	path, err := l.path(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("prompts: read %s: %w", name, err)
	}
	return string(data), nil
}

// Fields returns the field identifiers the template collects.
func (l *Library) Fields(name string) ([]string, error) {
	content, err := l.Content(name)
	if err != nil {
		return nil, err
	}
	return ExtractFields(content), nil
}

// path resolves name inside the library. Names are bare file names; the
// extension may be omitted.
func (l *Library) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if filepath.Ext(name) == "" {
		for ext := range promptExts {
			candidate := filepath.Join(l.dir, name+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return filepath.Join(l.dir, name), nil
}

// ExtractFields collects {{field}} placeholders and the bullet items listed
// under any heading containing "fields", in order of first appearance.
func ExtractFields(content string) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(field string) {
		if !seen[field] {
			seen[field] = true
			out = append(out, field)
		}
	}

	inFields := false
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			inFields = strings.Contains(strings.ToLower(m[1]), "fields")
			continue
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
		if inFields {
			if m := bulletPattern.FindStringSubmatch(line); m != nil {
				add(m[1])
			}
		}
	}
	return out
}
