package main

import (
	"fmt"
	"os"

	"github.com/jwebster45206/puzzle-engine/pkg/rules"
	"github.com/jwebster45206/puzzle-engine/pkg/snapshot"
	"github.com/jwebster45206/puzzle-engine/pkg/storage"
)

// fileBackend edits a snapshot file on disk. Changes stay in memory until saved.
type fileBackend struct {
	rulesPath    string
	snapshotPath string
}

func (b *fileBackend) Describe() string {
	return b.snapshotPath
}

func (b *fileBackend) Load() (*rules.RuleSet, *snapshot.Snapshot, error) {
	rs, err := storage.LoadRuleSetFile(b.rulesPath)
	if err != nil {
		return nil, nil, err
	}
	snap, err := storage.LoadSnapshotFile(b.snapshotPath)
	if err != nil {
		return nil, nil, err
	}
	return rs, snap, nil
}

func (b *fileBackend) Set(key snapshot.Key, v snapshot.Value) error {
	return nil
}

func (b *fileBackend) Save(snap *snapshot.Snapshot) error {
	data, err := storage.EncodeSnapshot(b.snapshotPath, snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(b.snapshotPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
