//go:build governance

package core_test

import (
	"go/types"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// =============================================================================
// COHESION TEST - Core types must be shared by multiple packages
// =============================================================================

// TestGovernance_CoreCohesion verifies that types in pkg/core are genuinely
// shared across multiple packages. Single-use types belong with their sole
// consumer.
func TestGovernance_CoreCohesion(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	// Collect exported type names and functions from pkg/core. Kind constants
	// are skipped: each error site uses only its own kinds.
	coreDefs := make(map[types.Object]string)
	var corePkg *packages.Package

	for _, p := range pkgs {
		if p.PkgPath != modulePath+"/pkg/core" {
			continue
		}
		corePkg = p
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			obj := scope.Lookup(name)
			switch obj.(type) {
			case *types.TypeName, *types.Func:
				if obj.Exported() {
					coreDefs[obj] = name
				}
			}
		}
		break
	}

	if corePkg == nil {
		t.Fatal("Could not find pkg/core")
	}

	usageMap := make(map[string]map[string]bool)
	for _, name := range coreDefs {
		usageMap[name] = make(map[string]bool)
	}

	base := modulePath + "/"

	for _, p := range pkgs {
		if p.PkgPath == corePkg.PkgPath || strings.HasSuffix(p.PkgPath, "_test") {
			continue
		}
		if p.TypesInfo == nil {
			continue
		}

		for _, info := range p.TypesInfo.Uses {
			if name, exists := coreDefs[info]; exists {
				importer := strings.TrimPrefix(p.PkgPath, base)
				usageMap[name][importer] = true
			}
		}
	}

	for name, importers := range usageMap {
		if isCohesionAllowlisted(name) {
			continue
		}

		if len(importers) == 0 {
			t.Logf("WARNING: Unused core identifier: %s (consider deleting)", name)
		} else if len(importers) == 1 {
			var user string
			for k := range importers {
				user = k
			}
			t.Errorf("COHESION VIOLATION: 'core.%s' is used ONLY by '%s'.\n"+
				"   Fix: Move it from pkg/core to %s.",
				name, user, user)
		}
	}
}

// isCohesionAllowlisted returns true for identifiers allowed to have single usage.
func isCohesionAllowlisted(name string) bool {
	allowlist := map[string]bool{
		"Wrap": true, // filter calls are the only site that wraps a foreign error
	}
	return allowlist[name]
}

// =============================================================================
// PURITY TEST - No type alias re-exports of core or token types
// =============================================================================

// TestGovernance_NoTypeAliasReexports ensures packages use core.Error,
// core.Kind and token.Position directly rather than re-exporting them.
func TestGovernance_NoTypeAliasReexports(t *testing.T) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedTypes,
	}
	pkgs, err := packages.Load(cfg, modulePath+"/...")
	if err != nil {
		t.Fatalf("Failed to load packages: %v", err)
	}

	shared := map[string]bool{
		modulePath + "/pkg/core":  true,
		modulePath + "/pkg/token": true,
	}

	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 || shared[pkg.PkgPath] {
			continue
		}

		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			typeName, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !typeName.Exported() || !typeName.IsAlias() {
				continue
			}

			named, ok := typeName.Type().(*types.Named)
			if !ok || named.Obj().Pkg() == nil {
				continue
			}
			if shared[named.Obj().Pkg().Path()] {
				t.Errorf("PURITY VIOLATION: Package '%s' re-exports '%s' as alias '%s'.\n"+
					"   Fix: Remove the alias and use %s.%s directly.",
					strings.TrimPrefix(pkg.PkgPath, modulePath+"/"),
					named.Obj().Name(), name,
					named.Obj().Pkg().Name(), named.Obj().Name())
			}
		}
	}
}
