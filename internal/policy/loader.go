package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fraudlens/fraudlens/internal/crypto"
)

type Loaded struct {
	Artifact Artifact
	Hash     string
	Bytes    []byte
}

// Load reads a frozen artifact and computes its hash from the raw bytes.
func Load(path string) (Loaded, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}

	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Loaded{}, fmt.Errorf("parse policy artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return Loaded{}, fmt.Errorf("invalid policy artifact %s: %w", path, err)
	}

	return Loaded{
		Artifact: a,
		Hash:     crypto.DigestWithPrefix(data),
		Bytes:    data,
	}, nil
}

// Save freezes an artifact to disk. The file is written to a temp path in
// the same directory and renamed into place so readers never observe a
// partial artifact.
func Save(path string, a Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".policy-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
