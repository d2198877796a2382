// Package depresolve parses a Cangjie package manifest (cjpm.toml) tree and
// builds the multiModuleOption map passed to the LSP server as
// initializationOptions: for every module reachable from the workspace
// root, the file:// URIs of its resolved dependencies.
package depresolve

// cjpmToml is the root shape of one cjpm.toml file. Only the sections the
// dependency resolver consumes are modeled; unknown keys are ignored by
// the TOML decoder.
type cjpmToml struct {
	Package         *cjpmPackage             `toml:"package"`
	Workspace       *cjpmWorkspace           `toml:"workspace"`
	Dependencies    map[string]any           `toml:"dependencies"`
	DevDependencies map[string]any           `toml:"dev-dependencies"`
	Target          map[string]cjpmTargetCfg `toml:"target"`
	FFI             *cjpmFFI                 `toml:"ffi"`
}

type cjpmPackage struct {
	Name string `toml:"name"`
}

type cjpmWorkspace struct {
	Members []string `toml:"members"`
}

type cjpmTargetCfg struct {
	Dependencies    map[string]any     `toml:"dependencies"`
	DevDependencies map[string]any     `toml:"dev-dependencies"`
	BinDependencies *cjpmBinDependency `toml:"bin-dependencies"`
}

type cjpmBinDependency struct {
	PathOption    []string          `toml:"path-option"`
	PackageOption map[string]string `toml:"package-option"`
}

type cjpmFFI struct {
	Java map[string]any          `toml:"java"`
	C    map[string]cjpmCModule  `toml:"c"`
}

type cjpmCModule struct {
	Path string `toml:"path"`
}

// cjpmLock is the subset of cjpm.lock needed to resolve a git dependency's
// checked-out commit.
type cjpmLock struct {
	Requires map[string]cjpmLockEntry `toml:"requires"`
}

type cjpmLockEntry struct {
	CommitID string `toml:"commitId"`
}

// depConfig is a manifest dependency entry once its TOML shape is known:
// either a bare version string, a local path table, or a git table.
type depConfig struct {
	Version string
	Path    string
	Git     string
}

// parseDepConfig interprets one raw TOML value from a [dependencies] (or
// similar) table: a plain string names a registry version; an inline
// table carries either a "path" or a "git" key.
func parseDepConfig(raw any) (depConfig, bool) {
	switch v := raw.(type) {
	case string:
		return depConfig{Version: v}, true
	case map[string]any:
		if path, ok := v["path"].(string); ok {
			return depConfig{Path: path}, true
		}
		if git, ok := v["git"].(string); ok {
			return depConfig{Git: git}, true
		}
	}
	return depConfig{}, false
}
