// Package modules implements the module loader: it resolves each entry of
// causa.modules against an installed manifest's semver, then dynamically
// loads the module and hands it a narrow capability object that can only
// register function implementations.
//
// Dynamic loading uses the standard library's plugin package;
// version-range resolution uses github.com/Masterminds/semver/v3.
package modules

import (
	"fmt"
	"plugin"
	"strings"
	"sync"

	"github.com/causa-dev/workspace-engine/engine/registry"
)

// Capabilities is the narrow object handed to a module's registration
// function. Its only capability is registering function implementations;
// a module cannot call, introspect or dispatch through the registry it is
// being loaded into.
type Capabilities struct {
	RegisterFunctionImplementations func(registrations ...registry.Registration) error
}

// RegisterFunc is the symbol every module plugin must export under the
// name "Register".
type RegisterFunc func(Capabilities) error

// Spec is one causa.modules entry.
type Spec struct {
	ID            string
	VersionOrPath string
}

// Load resolves and loads every spec concurrently against reg, using root
// as the workspace root under which modules are installed. Failure of any
// single module aborts the whole load. Every load runs to completion; the
// returned error is that of the earliest failing spec in slice order.
func Load(root string, specs []Spec, reg *registry.Registry) error {
	var wg sync.WaitGroup
	errs := make([]error, len(specs))

	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec Spec) {
			defer wg.Done()
			errs[i] = loadOne(root, spec, reg)
		}(i, spec)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func loadOne(root string, spec Spec, reg *registry.Registry) error {
	if err := checkVersion(root, spec.ID, spec.VersionOrPath); err != nil {
		return err
	}

	path := resolvePath(root, spec)
	p, err := plugin.Open(path)
	if err != nil {
		return NewModuleNotFoundError(spec.ID)
	}
	sym, err := p.Lookup("Register")
	if err != nil {
		return NewModuleVersionError(spec.ID, fmt.Sprintf("module does not export Register: %s", err))
	}
	register, ok := sym.(func(Capabilities) error)
	if !ok {
		return NewModuleVersionError(spec.ID, "module's Register symbol has the wrong signature")
	}
	caps := Capabilities{
		RegisterFunctionImplementations: func(registrations ...registry.Registration) error {
			for _, apply := range registrations {
				if err := apply(reg); err != nil {
					return err
				}
			}
			return nil
		},
	}
	if err := register(caps); err != nil {
		return NewModuleVersionError(spec.ID, err.Error())
	}
	return nil
}

// resolvePath honors an explicit "file:" spec (a path relative to root
// pointing straight at the compiled plugin), falling back to the
// conventional <root>/.causa/modules/<id>/module.so location.
func resolvePath(root string, spec Spec) string {
	if rest, ok := strings.CutPrefix(spec.VersionOrPath, "file:"); ok {
		if strings.HasPrefix(rest, "/") {
			return rest
		}
		return root + "/" + rest
	}
	return pluginPath(root, spec.ID)
}
