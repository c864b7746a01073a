// Package artifact persists and restores trained (classifier, encoder) pairs
// as single versioned units.
package artifact

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/ml"
)

const (
	manifestVersion = 1

	modelFile    = "model.gob"
	encoderFile  = "encoder.gob"
	manifestFile = "manifest.json"
	currentFile  = "CURRENT"
)

// Handle identifies one persisted artifact.
type Handle string

// Manifest records the identity shared by both halves of an artifact. The
// feature width and location order are written explicitly so a mismatched
// classifier/encoder pair is detected at load time instead of producing
// silently wrong probabilities.
type Manifest struct {
	Version      int       `json:"version"`
	FeatureWidth int       `json:"feature_width"`
	Locations    []string  `json:"locations"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Artifact is a loaded (classifier, encoder) pair. Immutable once loaded;
// retraining produces a new Artifact, never patches one in place.
type Artifact struct {
	Forest   *ml.Forest
	Encoder  *ml.LocationEncoder
	Handle   Handle
	Manifest Manifest
}

// Store reads and writes artifacts under a root directory. Each artifact is a
// subdirectory holding model.gob, encoder.gob, and manifest.json; a CURRENT
// pointer file names the artifact serving traffic.
type Store struct {
	dir    string
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{dir: dir, logger: logger, clock: clockwork.NewRealClock()}, nil
}

// SetClock swaps the time source for manifest timestamps. Tests only.
func (s *Store) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Save persists the classifier and its paired encoder atomically: both halves
// plus the manifest are staged in a temp directory and renamed into place,
// then CURRENT is repointed. The two are always written together; an artifact
// directory either exists in full or not at all.
func (s *Store) Save(forest *ml.Forest, encoder *ml.LocationEncoder) (Handle, error) {
	if forest.NumFeatures != encoder.Width() {
		return "", fmt.Errorf("save: forest expects %d features, encoder produces %d: %w",
			forest.NumFeatures, encoder.Width(), domain.ErrCorruptArtifact)
	}

	handle := Handle(uuid.NewString())
	staging := filepath.Join(s.dir, ".staging-"+string(handle))
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	defer os.RemoveAll(staging)

	manifest := Manifest{
		Version:      manifestVersion,
		FeatureWidth: encoder.Width(),
		Locations:    encoder.Locations(),
		TrainedAt:    s.clock.Now().UTC(),
	}

	if err := writeGob(filepath.Join(staging, modelFile), forest); err != nil {
		return "", err
	}
	if err := writeGob(filepath.Join(staging, encoderFile), encoder); err != nil {
		return "", err
	}
	if err := writeManifest(filepath.Join(staging, manifestFile), manifest); err != nil {
		return "", err
	}

	final := filepath.Join(s.dir, string(handle))
	if err := os.Rename(staging, final); err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	if err := s.setCurrent(handle); err != nil {
		return "", err
	}

	s.logger.Info("artifact saved",
		"handle", string(handle),
		"feature_width", manifest.FeatureWidth,
		"locations", len(manifest.Locations),
	)
	return handle, nil
}

// Load restores the artifact identified by handle, verifying that the two
// halves still agree. Any unreadable file, version skew, or width mismatch
// fails with domain.ErrCorruptArtifact.
func (s *Store) Load(handle Handle) (*Artifact, error) {
	dir := filepath.Join(s.dir, string(handle))

	var manifest Manifest
	if err := readManifest(filepath.Join(dir, manifestFile), &manifest); err != nil {
		return nil, err
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("load %s: manifest version %d, want %d: %w",
			handle, manifest.Version, manifestVersion, domain.ErrCorruptArtifact)
	}

	forest := &ml.Forest{}
	if err := readGob(filepath.Join(dir, modelFile), forest); err != nil {
		return nil, err
	}
	encoder := ml.NewLocationEncoder()
	if err := readGob(filepath.Join(dir, encoderFile), encoder); err != nil {
		return nil, err
	}

	if encoder.Width() != forest.NumFeatures || encoder.Width() != manifest.FeatureWidth {
		return nil, fmt.Errorf("load %s: encoder width %d, forest width %d, manifest width %d: %w",
			handle, encoder.Width(), forest.NumFeatures, manifest.FeatureWidth, domain.ErrCorruptArtifact)
	}
	if len(encoder.Locations()) != len(manifest.Locations) {
		return nil, fmt.Errorf("load %s: encoder holds %d locations, manifest lists %d: %w",
			handle, len(encoder.Locations()), len(manifest.Locations), domain.ErrCorruptArtifact)
	}

	return &Artifact{Forest: forest, Encoder: encoder, Handle: handle, Manifest: manifest}, nil
}

// LoadCurrent restores the artifact named by the CURRENT pointer. A store
// with no CURRENT pointer has never completed a training run, which surfaces
// as domain.ErrModelNotLoaded.
func (s *Store) LoadCurrent() (*Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no trained artifact in %s: %w", s.dir, domain.ErrModelNotLoaded)
	}
	if err != nil {
		return nil, fmt.Errorf("read current pointer: %w", err)
	}
	return s.Load(Handle(strings.TrimSpace(string(data))))
}

// setCurrent repoints CURRENT via write-to-temp-and-rename so readers see
// either the old or the new handle, never a torn write.
func (s *Store) setCurrent(handle Handle) error {
	tmp := filepath.Join(s.dir, currentFile+".tmp")
	if err := os.WriteFile(tmp, []byte(handle), 0o644); err != nil {
		return fmt.Errorf("write current pointer: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		return fmt.Errorf("publish current pointer: %w", err)
	}
	return nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), domain.ErrCorruptArtifact)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", filepath.Base(path), err, domain.ErrCorruptArtifact)
	}
	return nil
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readManifest(path string, m *Manifest) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), domain.ErrCorruptArtifact)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("decode %s: %v: %w", filepath.Base(path), err, domain.ErrCorruptArtifact)
	}
	return nil
}
