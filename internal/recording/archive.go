package recording

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/inference-mock/internal/platform/errors"
)

const (
	archivePrefix    = "triton-mock-recording-"
	archiveExtension = ".json.gz"
)

// Archive is the persisted form of a Store.
type Archive struct {
	Models map[string]*Recording `json:"model_map"`
}

// ArchivePath returns the archive file for suffix inside dir.
func ArchivePath(dir, suffix string) (string, error) {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return "", fmt.Errorf("archive suffix is required")
	}
	if strings.ContainsAny(suffix, `/\`) || suffix == "." || suffix == ".." {
		return "", fmt.Errorf("archive suffix %q must not contain path elements", suffix)
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, archivePrefix+suffix+archiveExtension), nil
}

// Save writes archive to path as gzip-compressed JSON. The file is written
// to a temporary sibling and renamed into place.
func Save(path string, archive *Archive) error {
	if archive == nil {
		archive = &Archive{}
	}
	if archive.Models == nil {
		archive.Models = make(map[string]*Recording)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "create archive", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(archive); err != nil {
		cleanup()
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "encode archive", err)
	}
	if err := gz.Close(); err != nil {
		cleanup()
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "compress archive", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "sync archive", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "close archive", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return apperrors.Wrap(apperrors.CodePersistenceFailure, "rename archive", err)
	}
	return nil
}

// Load reads an archive written by Save.
func Load(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "open archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "decompress archive "+path, err)
	}
	defer gz.Close()

	var archive Archive
	if err := json.NewDecoder(gz).Decode(&archive); err != nil {
		return nil, apperrors.Wrap(apperrors.CodePersistenceFailure, "decode archive "+path, err)
	}
	if archive.Models == nil {
		archive.Models = make(map[string]*Recording)
	}
	for model, rec := range archive.Models {
		if rec == nil {
			rec = newRecording()
			archive.Models[model] = rec
		}
		if rec.Config == nil {
			rec.Config = make(map[string][][]byte)
		}
	}
	return &archive, nil
}

// LoadStore reads the archive at path into a new Store.
func LoadStore(path string) (*Store, error) {
	archive, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStoreFromArchive(archive), nil
}

// SaveStore snapshots s and writes it to path.
func SaveStore(path string, s *Store) error {
	return Save(path, s.Snapshot())
}
