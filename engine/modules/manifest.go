package modules

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// manifest is the on-disk descriptor at <root>/.causa/modules/<id>/module.yaml.
type manifest struct {
	Version string `yaml:"version"`
}

// manifestPath returns where id's manifest is expected to live under root.
func manifestPath(root, id string) string {
	return filepath.Join(root, ".causa", "modules", id, "module.yaml")
}

// pluginPath returns where id's compiled plugin is expected to live under
// root, absent an explicit file: spec.
func pluginPath(root, id string) string {
	return filepath.Join(root, ".causa", "modules", id, "module.so")
}

func readManifest(root, id string) (*manifest, error) {
	data, err := os.ReadFile(manifestPath(root, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewModuleNotFoundError(id)
		}
		return nil, NewModuleVersionError(id, err.Error())
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, NewModuleVersionError(id, fmt.Sprintf("failed to parse module.yaml: %s", err))
	}
	return &m, nil
}

// checkVersion resolves id's installed manifest and validates it against
// versionOrPath. A versionOrPath that does not parse as a semver
// constraint (e.g. a "file:" local spec) skips the check entirely.
func checkVersion(root, id, versionOrPath string) error {
	constraint, err := semver.NewConstraint(versionOrPath)
	if err != nil {
		return nil
	}
	m, err := readManifest(root, id)
	if err != nil {
		return err
	}
	installed, err := semver.NewVersion(m.Version)
	if err != nil {
		return NewModuleVersionError(id, fmt.Sprintf("invalid installed version %q: %s", m.Version, err))
	}
	if !constraint.Check(installed) {
		return NewIncompatibleModuleVersionError(id, m.Version, versionOrPath)
	}
	return nil
}
