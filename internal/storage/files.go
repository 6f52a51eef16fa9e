package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

// RuleSet file operations (filesystem-backed)

// ListRuleSetFiles maps rule set names to their filenames in <dataDir>/rulesets.
// Only the top level is read, since GetRuleSetFile takes bare filenames.
// When two files share a name the first filename in sort order wins.
func (r *RedisStorage) ListRuleSetFiles(ctx context.Context) (map[string]string, error) {
	dir := filepath.Join(r.dataDir, "rulesets")
	out := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		r.logger.Error("Failed to read rule sets directory", "error", err)
		return nil, fmt.Errorf("failed to list rule set files: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || !storage.IsRuleFile(e.Name()) {
			continue
		}
		rs, err := storage.LoadRuleSetFile(filepath.Join(dir, e.Name()))
		if err != nil {
			r.logger.Warn("Failed to load rule set file", "filename", e.Name(), "error", err)
			continue
		}
		if existing, ok := out[rs.Name]; ok {
			r.logger.Warn("Duplicate rule set name in files", "name", rs.Name, "kept", existing, "skipped", e.Name())
			continue
		}
		out[rs.Name] = e.Name()
	}
	return out, nil
}

func (r *RedisStorage) GetRuleSetFile(ctx context.Context, filename string) (*rules.RuleSet, error) {
	// only bare filenames; no walking out of the data directory
	if filename != filepath.Base(filename) {
		return nil, fmt.Errorf("invalid rule set filename %q", filename)
	}
	path := filepath.Join(r.dataDir, "rulesets", filename)
	r.logger.Debug("Loading rule set file", "filename", filename, "full_path", path)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("rule set file %s: %w", filename, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat rule set file: %w", err)
	}

	return storage.LoadRuleSetFile(path)
}
