package backend

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ExistingBackendError reports a refused overwrite of a persisted backend.
type ExistingBackendError struct {
	Path string
}

func (e *ExistingBackendError) Error() string {
	return fmt.Sprintf("%s already exists; rerun with --force to replace", e.Path)
}

// Store reads and writes the backend file/manifest pair inside one estate
// workspace.
type Store struct {
	// Root is the estate workspace root.
	Root string

	// Now stamps new manifests; defaults to time.Now.
	Now func() time.Time
}

// NewStore returns a store rooted at the estate workspace.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// BackendFileRel returns the backend file path relative to the workspace
// root, the form recorded in logs and handed to the IaC tool.
func (s *Store) BackendFileRel(alias string) string {
	return filepath.Join(BackendDirname, alias+".tfbackend")
}

// BackendFilePath returns the absolute backend file path for an alias.
func (s *Store) BackendFilePath(alias string) string {
	return filepath.Join(s.Root, s.BackendFileRel(alias))
}

// ManifestPath returns the absolute manifest path.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.Root, BackendDirname, ManifestFilename)
}

// Read loads the manifest when present. A missing manifest returns nil
// without error; a manifest from a newer schema is rejected.
func (s *Store) Read() (*Manifest, error) {
	data, err := os.ReadFile(s.ManifestPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read persistence manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("invalid persistence manifest at %s: %w", s.ManifestPath(), err)
	}
	if manifest.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf(
			"unsupported persistence manifest schema_version=%d at %s; maximum supported schema_version is %d",
			manifest.SchemaVersion, s.ManifestPath(), SchemaVersion)
	}
	return &manifest, nil
}

// Write persists the backend file and manifest together. It returns false
// when the pair already matches params (nothing written). An existing,
// different backend is refused unless force is set. On any failure partway
// through, no partially written state is left behind.
func (s *Store) Write(alias string, p Params, force bool) (bool, error) {
	backendPath := s.BackendFilePath(alias)
	manifestPath := s.ManifestPath()
	rendered := []byte(RenderBackendFile(p))

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	manifest := Manifest{
		SchemaVersion: SchemaVersion,
		Bucket:        p.Bucket,
		Region:        p.Region,
		Endpoint:      p.Endpoint,
		KeyPrefix:     p.KeyPrefix,
		KeySuffix:     p.KeySuffix,
		CreatedAt:     now().UTC(),
	}
	manifestBytes, err := yaml.Marshal(&manifest)
	if err != nil {
		return false, fmt.Errorf("failed to encode persistence manifest: %w", err)
	}

	existingBackend, backendExists, err := readIfPresent(backendPath)
	if err != nil {
		return false, err
	}
	existingManifest, err := s.Read()
	if err != nil {
		return false, err
	}

	unchanged := backendExists &&
		bytes.Equal(existingBackend, rendered) &&
		existingManifest != nil &&
		existingManifest.Params() == p
	if unchanged {
		return false, nil
	}

	if (backendExists || existingManifest != nil) && !force {
		return false, &ExistingBackendError{Path: backendPath}
	}

	if err := os.MkdirAll(filepath.Dir(backendPath), 0o755); err != nil {
		return false, fmt.Errorf("failed to create backend directory: %w", err)
	}

	// Stage both files, then rename. If the second rename fails, the first
	// file is removed again so the pair is never half-written.
	backendTmp := backendPath + ".tmp"
	manifestTmp := manifestPath + ".tmp"
	if err := os.WriteFile(backendTmp, rendered, 0o644); err != nil {
		return false, fmt.Errorf("failed to stage backend file: %w", err)
	}
	if err := os.WriteFile(manifestTmp, manifestBytes, 0o644); err != nil {
		_ = os.Remove(backendTmp)
		return false, fmt.Errorf("failed to stage persistence manifest: %w", err)
	}
	if err := os.Rename(backendTmp, backendPath); err != nil {
		_ = os.Remove(backendTmp)
		_ = os.Remove(manifestTmp)
		return false, fmt.Errorf("failed to write backend file: %w", err)
	}
	if err := os.Rename(manifestTmp, manifestPath); err != nil {
		_ = os.Remove(manifestTmp)
		_ = os.Remove(backendPath)
		return false, fmt.Errorf("failed to write persistence manifest: %w", err)
	}
	return true, nil
}

func readIfPresent(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, true, nil
}
