package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"assetizer/internal/fileutil"
	"assetizer/internal/services"
)

// Load reads a manifest from path. A missing file returns ErrNotFound so
// callers can distinguish "never ingested" from a corrupt manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "", "load manifest",
				fmt.Sprintf("no manifest at %s", path), nil)
		}
		return nil, services.Wrap(services.ErrDataIntegrity, "", "load manifest", "read manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrDataIntegrity, "", "load manifest", "decode manifest", err)
	}
	if m.AssetID == "" {
		return nil, services.Wrap(services.ErrDataIntegrity, "", "load manifest", "manifest missing asset_id", nil)
	}
	return &m, nil
}

// Save writes the manifest atomically (temp file + rename) so a crash never
// leaves a truncated manifest behind.
func Save(path string, m *Manifest) error {
	if m == nil {
		return services.Wrap(services.ErrValidation, "", "save manifest", "nil manifest", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "save manifest", "ensure asset directory", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "save manifest", "encode manifest", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrDataIntegrity, "", "save manifest", "write manifest", err)
	}
	return nil
}
