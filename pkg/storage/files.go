package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"gopkg.in/yaml.v3"
)

// IsRuleFile reports whether filename has an extension DecodeRuleSet understands
func IsRuleFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// DecodeRuleSet parses a rule set from JSON or YAML, chosen by extension.
// JSON input is decoded strictly: unknown fields are rejected.
func DecodeRuleSet(filename string, data []byte) (*rules.RuleSet, error) {
	var rs rules.RuleSet
	if isYAML(filename) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&rs); err != nil {
			return nil, fmt.Errorf("failed to parse rule set YAML %s: %w", filename, err)
		}
		return &rs, nil
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("file %s contains invalid JSON", filename)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set JSON %s: %w", filename, err)
	}
	return &rs, nil
}

// DecodeSnapshot parses an entity -> variable -> value document
func DecodeSnapshot(filename string, data []byte) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	if isYAML(filename) {
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot YAML %s: %w", filename, err)
		}
		return &snap, nil
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON %s: %w", filename, err)
	}
	return &snap, nil
}

// LoadRuleSetFile reads and decodes a rule set from disk
func LoadRuleSetFile(path string) (*rules.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set file: %w", err)
	}
	return DecodeRuleSet(path, data)
}

// LoadSnapshotFile reads and decodes a snapshot from disk
func LoadSnapshotFile(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return DecodeSnapshot(path, data)
}

// EncodeSnapshot renders snap in the format implied by filename
func EncodeSnapshot(filename string, snap *snapshot.Snapshot) ([]byte, error) {
	if isYAML(filename) {
		return yaml.Marshal(snap)
	}
	return json.MarshalIndent(snap, "", "  ")
}
