package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"complyhq/sentinel/pkg/rules"
)

// Source supplies rule definitions to the evaluator.
type Source interface {
	LoadRules(ctx context.Context) ([]*rules.Rule, error)
}

// ruleFile is the on-disk layout of a rule file.
//
//	rules:
//	  - id: sod-ap-vendor
//	    name: AP clerk also maintains vendors
//	    pattern:
//	      type: SOD
//	      conflictingRoles: [AP_CLERK, VENDOR_MASTER]
//	    risk: {level: CRITICAL, score: 95}
type ruleFile struct {
	Rules []*rules.Rule `yaml:"rules"`
}

// FileSource loads rules from YAML or JSON files on disk.
type FileSource struct {
	path   string
	strict bool
	logger *slog.Logger
}

// NewFileSource creates a file-based rule source. The path can be a single file or a
// directory; a directory is walked for .yaml, .yml and .json files.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With("component", "rules.source"),
	}
}

// WithStrict makes directory loads fail on the first invalid file instead of
// skipping it.
func (s *FileSource) WithStrict(strict bool) *FileSource {
	s.strict = strict
	return s
}

// Path returns the configured path.
func (s *FileSource) Path() string {
	return s.path
}

// LoadRules loads and validates every rule under the configured path. Rule ids must
// be unique across all files.
func (s *FileSource) LoadRules(ctx context.Context) ([]*rules.Rule, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path %q: %w", s.path, err)
	}

	var loaded []*rules.Rule
	if info.IsDir() {
		loaded, err = s.loadDirectory(ctx)
	} else {
		loaded, err = LoadFile(s.path)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(loaded))
	for _, r := range loaded {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %q under %s", r.ID, s.path)
		}
		seen[r.ID] = true
	}

	s.logger.Info("loaded rules from source",
		"path", s.path,
		"rule_count", len(loaded),
	)

	return loaded, nil
}

func (s *FileSource) loadDirectory(ctx context.Context) ([]*rules.Rule, error) {
	var files []string
	err := filepath.WalkDir(s.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsRuleFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %q: %w", s.path, err)
	}
	sort.Strings(files)

	var all []*rules.Rule
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loaded, err := LoadFile(path)
		if err != nil {
			if s.strict {
				return nil, err
			}
			s.logger.Warn("failed to load rule file, skipping",
				"path", path,
				"error", err,
			)
			continue
		}
		all = append(all, loaded...)
	}
	return all, nil
}

// LoadFile parses and validates one rule file. The file may hold a top-level rules
// list or be a bare list of rules.
func LoadFile(path string) ([]*rules.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}

	parsed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file %q: %w", path, err)
	}
	return parsed, nil
}

// Parse decodes and validates rule definitions from YAML or JSON bytes.
func Parse(data []byte) ([]*rules.Rule, error) {
	trimmed := bytes.TrimSpace(data)

	var parsed []*rules.Rule
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '-') {
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, err
		}
	} else {
		var f ruleFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		parsed = f.Rules
	}

	for i, r := range parsed {
		if r == nil {
			return nil, fmt.Errorf("rule %d is empty", i)
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return parsed, nil
}

// IsRuleFile reports whether path has a rule file extension.
func IsRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
