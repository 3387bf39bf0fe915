package modules

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// folderManifest is the descriptor written at <root>/.causa/causa.yaml,
// declaring the modules an external installer should place under
// .causa/modules. The installer itself is out of scope; the engine only
// prepares the folder and consumes what gets installed there.
type folderManifest struct {
	Modules map[string]string `yaml:"modules"`
}

// SetupWorkspaceFolder prepares the plugin-installation folder under root:
// it ensures <root>/.causa/modules exists and writes a manifest listing the
// declared modules for the installer to act on. It returns the folder path.
func SetupWorkspaceFolder(root string, specs []Spec) (string, error) {
	folder := filepath.Join(root, ".causa")
	if err := os.MkdirAll(filepath.Join(folder, "modules"), 0o755); err != nil {
		return "", err
	}

	m := folderManifest{Modules: make(map[string]string, len(specs))}
	for _, spec := range specs {
		m.Modules[spec.ID] = spec.VersionOrPath
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(folder, "causa.yaml"), data, 0o644); err != nil {
		return "", err
	}
	return folder, nil
}
