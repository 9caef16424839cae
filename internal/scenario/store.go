package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

var (
	ErrNotFound = errors.New("scenario: not found")
	ErrConflict = errors.New("scenario: already exists")
)

const fileExt = ".yaml"

// Catalog is the persisted set of scenarios. Refs accept a scenario name, its
// slug or its file path.
type Catalog interface {
	List(ctx context.Context) ([]ScenarioSummary, error)
	Get(ctx context.Context, ref string) (*ScenarioDetail, error)
	Create(ctx context.Context, sc Scenario) (ScenarioSummary, error)
	Update(ctx context.Context, ref string, sc Scenario) (ScenarioSummary, error)
	Delete(ctx context.Context, ref string) error
}

// Slugify lowercases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// FilePathFor is the durable identifier of a scenario named name.
func FilePathFor(name string) string {
	return Slugify(name) + fileExt
}

func slugFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = filepath.Base(filepath.ToSlash(ref))
	for _, ext := range []string{fileExt, ".yml"} {
		if strings.HasSuffix(strings.ToLower(ref), ext) {
			ref = ref[:len(ref)-len(ext)]
			break
		}
	}
	return Slugify(ref)
}

// FileStore keeps one YAML file per scenario under a directory.
type FileStore struct {
	dir    string
	logger *logging.Logger
	mu     sync.RWMutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, logger *logging.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("scenario: store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scenario: create store directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the catalog directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) List(ctx context.Context) ([]ScenarioSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scenario: read catalog: %w", err)
	}
	out := make([]ScenarioSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isScenarioFile(entry.Name()) {
			continue
		}
		sc, err := s.read(entry.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable scenario file", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, sc.Summary(entry.Name()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) Get(ctx context.Context, ref string) (*ScenarioDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.locate(ref)
	if err != nil {
		return nil, err
	}
	sc, err := s.read(file)
	if err != nil {
		return nil, err
	}
	return &ScenarioDetail{Scenario: *sc, FilePath: file}, nil
}

func (s *FileStore) Create(ctx context.Context, sc Scenario) (ScenarioSummary, error) {
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return ScenarioSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file := FilePathFor(sc.Name)
	if existing, err := s.locate(file); err == nil {
		return ScenarioSummary{}, fmt.Errorf("%w: %s", ErrConflict, existing)
	}
	if err := s.write(file, &sc); err != nil {
		return ScenarioSummary{}, err
	}
	s.logger.Info("scenario created", "file_path", file, "turns", len(sc.Turns))
	return sc.Summary(file), nil
}

// Update fully replaces the scenario at ref. Renaming moves the file.
func (s *FileStore) Update(ctx context.Context, ref string, sc Scenario) (ScenarioSummary, error) {
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return ScenarioSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.locate(ref)
	if err != nil {
		return ScenarioSummary{}, err
	}
	file := FilePathFor(sc.Name)
	if slugFromRef(file) != slugFromRef(current) {
		if existing, err := s.locate(file); err == nil {
			return ScenarioSummary{}, fmt.Errorf("%w: %s", ErrConflict, existing)
		}
	}
	if err := s.write(file, &sc); err != nil {
		return ScenarioSummary{}, err
	}
	if file != current {
		if err := os.Remove(filepath.Join(s.dir, current)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return ScenarioSummary{}, fmt.Errorf("scenario: remove renamed file: %w", err)
		}
	}
	s.logger.Info("scenario updated", "file_path", file, "previous_file_path", current)
	return sc.Summary(file), nil
}

func (s *FileStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.locate(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, file)); err != nil {
		return fmt.Errorf("scenario: delete %s: %w", file, err)
	}
	s.logger.Info("scenario deleted", "file_path", file)
	return nil
}

// Count returns the number of scenario files.
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && isScenarioFile(entry.Name()) {
			n++
		}
	}
	return n
}

// locate resolves ref to a file name in the catalog. Callers hold s.mu.
func (s *FileStore) locate(ref string) (string, error) {
	slug := slugFromRef(ref)
	if slug == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	for _, ext := range []string{fileExt, ".yml"} {
		file := slug + ext
		if _, err := os.Stat(filepath.Join(s.dir, file)); err == nil {
			return file, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
}

func (s *FileStore) read(file string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, fmt.Errorf("scenario: read %s: %w", file, err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("scenario: parse %s: %w", file, err)
	}
	return &sc, nil
}

// write replaces file atomically.
func (s *FileStore) write(file string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("scenario: encode %s: %w", file, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("scenario: write %s: %w", file, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("scenario: write %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("scenario: write %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, file)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("scenario: write %s: %w", file, err)
	}
	return nil
}

func isScenarioFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, fileExt) || strings.HasSuffix(lower, ".yml")
}
