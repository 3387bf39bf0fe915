// Package discovery implements the configuration-discovery walk: it
// locates causa.yaml files from a working directory up to the filesystem
// root (honoring gitignore), merges them into a reader, and infers the
// workspace root and active project root. It also resolves a project's
// list of sibling project paths and its externalFiles globs.
package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/causa-dev/workspace-engine/engine/configreader"
	"github.com/causa-dev/workspace-engine/engine/value"
)

type fileEntry struct {
	Dir    string
	Path   string
	Config value.Map
}

// Result is the outcome of LoadWorkspaceConfiguration.
type Result struct {
	Reader      *configreader.Reader
	RootPath    string
	ProjectPath *string
}

func isConfigFileName(name string) bool {
	if name == "causa.yaml" {
		return true
	}
	ok, _ := doublestar.Match("causa.*.yaml", name)
	return ok
}

// LoadWorkspaceConfiguration walks from workingDirectory up to the
// filesystem root collecting causa.yaml / causa.*.yaml files, honoring
// gitignore, merges them into a reader in root-to-leaf order (within a
// directory, descending lexicographically), optionally overlays the named
// environment, and infers the workspace root and active project root.
func LoadWorkspaceConfiguration(
	_ context.Context,
	workingDirectory string,
	environment *string,
	marker string,
) (*Result, error) {
	workingDirectory, err := filepath.Abs(workingDirectory)
	if err != nil {
		return nil, err
	}

	dirs := ancestorChain(workingDirectory)
	fsRoot := dirs[len(dirs)-1]

	matcher, err := matcherChain(fsRoot, workingDirectory)
	if err != nil {
		return nil, err
	}

	var entries []fileEntry
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		names, err := matchingFileNames(dir)
		if err != nil {
			return nil, err
		}
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
		for _, name := range names {
			full := filepath.Join(dir, name)
			rel, err := filepath.Rel(fsRoot, full)
			if err != nil {
				return nil, err
			}
			if isIgnored(matcher, rel, false) {
				continue
			}
			cfg, err := readConfigFile(full)
			if err != nil {
				return nil, err
			}
			entries = append(entries, fileEntry{Dir: dir, Path: full, Config: cfg})
		}
	}

	if len(entries) == 0 {
		return nil, configreader.NewInvalidWorkspaceConfigurationFilesError(
			fmt.Sprintf("no causa.yaml configuration files found above %s", workingDirectory),
		)
	}

	reader := configreader.New(marker)
	layers := make([]configreader.RawConfiguration, 0, len(entries))
	for i := range entries {
		path := entries[i].Path
		layers = append(layers, configreader.RawConfiguration{
			SourceType:    configreader.SourceFile,
			Source:        &path,
			Configuration: entries[i].Config,
		})
	}
	reader = reader.MergedWith(layers...)

	if environment != nil {
		envValue, err := reader.GetOrThrow("environments."+*environment, configreader.GetOptions{Unsafe: true})
		if err != nil {
			return nil, err
		}
		if envMap, ok := value.AsMap(envValue); ok {
			if cfg, ok := value.AsMap(envMap["configuration"]); ok {
				reader = reader.MergedWith(configreader.RawConfiguration{
					SourceType:    configreader.SourceEnv,
					Configuration: cfg,
				})
			}
		}
	}

	rootPath, err := uniqueDirWithNonNull(entries, "workspace.name", true)
	if err != nil {
		return nil, err
	}
	projectPath, err := uniqueDirWithNonNull(entries, "project.name", false)
	if err != nil {
		return nil, err
	}
	var projectPathPtr *string
	if projectPath != "" {
		p := projectPath
		projectPathPtr = &p
	}

	return &Result{Reader: reader, RootPath: rootPath, ProjectPath: projectPathPtr}, nil
}

// ListProjectPaths recursively globs **/causa.yaml and **/causa.*.yaml
// under root, returning the unique, sorted set of directories whose
// configuration declares project.name.
func ListProjectPaths(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	matches := map[string]bool{}
	for _, pattern := range []string{"**/causa.yaml", "**/causa.*.yaml"} {
		found, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		for _, m := range found {
			matches[m] = true
		}
	}

	dirSet := map[string]bool{}
	for file := range matches {
		cfg, err := readConfigFile(file)
		if err != nil {
			return nil, err
		}
		if v, ok := value.Get(cfg, "project.name"); ok && v != nil {
			dirSet[filepath.Dir(file)] = true
		}
	}
	out := make([]string, 0, len(dirSet))
	for d := range dirSet {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// GetProjectExternalPaths resolves the project.externalFiles glob patterns
// declared at path projectConfig["project"]["externalFiles"] relative to
// rootPath, honoring gitignore and never following symlinks (doublestar's
// default).
func GetProjectExternalPaths(rootPath string, externalFiles []string) ([]string, error) {
	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	matcher, err := matcherChain(rootPath, rootPath)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []string
	for _, pattern := range externalFiles {
		found, err := doublestar.FilepathGlob(filepath.Join(rootPath, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		for _, m := range found {
			rel, err := filepath.Rel(rootPath, m)
			if err != nil {
				continue
			}
			info, err := os.Lstat(m)
			isDir := err == nil && info.IsDir()
			if isIgnored(matcher, rel, isDir) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func ancestorChain(dir string) []string {
	chain := []string{dir}
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		chain = append(chain, parent)
		dir = parent
	}
	return chain
}

func matchingFileNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isConfigFileName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func readConfigFile(path string) (value.Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return value.Map(raw), nil
}

func uniqueDirWithNonNull(entries []fileEntry, path string, required bool) (string, error) {
	var matches []string
	for _, e := range entries {
		if v, ok := value.Get(e.Config, path); ok && v != nil {
			matches = append(matches, e.Dir)
		}
	}
	switch len(matches) {
	case 0:
		if required {
			return "", configreader.NewInvalidWorkspaceConfigurationFilesError(
				fmt.Sprintf("no configuration file declares %s", path),
			)
		}
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", configreader.NewInvalidWorkspaceConfigurationFilesError(
			fmt.Sprintf("multiple configuration files declare %s", path),
		)
	}
}
