package depresolve

import (
	"log"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	cjpmTomlFile = "cjpm.toml"
	cjpmLockFile = "cjpm.lock"

	repositorySubdir = "repository"
	gitSubdir        = "git"
)

// Dependency is a resolved dependency, recorded as a file:// URI.
type Dependency struct {
	Path string
}

// PackageRequires carries resolved bin-dependency entries.
type PackageRequires struct {
	PackageOption map[string]string
	PathOption    []string
}

// ModuleOption is one module's entry in the multiModuleOption map passed
// to the LSP server as initializationOptions.
type ModuleOption struct {
	Name            string
	Requires        map[string]Dependency
	PackageRequires *PackageRequires
	JavaRequires    []string
}

// toMap renders a ModuleOption into the plain map shape the LSP server
// expects on the wire (mirroring the reference resolver's to_dict).
func (m ModuleOption) toMap() map[string]any {
	requires := make(map[string]any, len(m.Requires))
	for name, dep := range m.Requires {
		requires[name] = map[string]any{"path": dep.Path}
	}
	result := map[string]any{
		"name":     m.Name,
		"requires": requires,
	}
	if m.PackageRequires != nil {
		result["package_requires"] = map[string]any{
			"package_option": m.PackageRequires.PackageOption,
			"path_option":    m.PackageRequires.PathOption,
		}
	}
	if m.JavaRequires != nil {
		result["java_requires"] = m.JavaRequires
	}
	return result
}

// Resolver walks a workspace's cjpm.toml tree and builds the module graph
// the LSP server needs at initialization.
type Resolver struct {
	workspacePath string

	modules     map[string]*ModuleOption
	visited     map[string]bool
	rootLock    *cjpmLock
	requirePath string
}

// New returns a Resolver rooted at workspacePath.
func New(workspacePath string) (*Resolver, error) {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		return nil, err
	}
	return &Resolver{workspacePath: abs}, nil
}

// Result is what Resolve returns: the module graph keyed by module URI,
// rendered to the wire shape the LSP server expects, plus the
// accumulated native-library search path.
type Result struct {
	MultiModuleOption map[string]map[string]any
	RequirePath       string
}

// Resolve parses the workspace's manifest tree and returns the module
// graph and accumulated native-library search path.
func (r *Resolver) Resolve() Result {
	r.modules = make(map[string]*ModuleOption)
	r.visited = make(map[string]bool)
	r.rootLock = nil
	r.requirePath = ""

	cjpm := loadCjpmToml(filepath.Join(r.workspacePath, cjpmTomlFile))
	if cjpm == nil {
		return Result{MultiModuleOption: map[string]map[string]any{}}
	}
	if cjpm.Workspace != nil && len(cjpm.Workspace.Members) > 0 {
		r.processWorkspaceMode(cjpm)
	} else {
		r.findAllToml(r.workspacePath, "")
	}

	out := make(map[string]map[string]any, len(r.modules))
	for uri, opt := range r.modules {
		out[uri] = opt.toMap()
	}
	return Result{MultiModuleOption: out, RequirePath: r.requirePath}
}

func (r *Resolver) processWorkspaceMode(cjpm *cjpmToml) {
	rootRequires := r.getRequires(cjpm.Dependencies, r.workspacePath)
	rootPkgRequires := PackageRequires{}
	if cjpm.Target != nil {
		rootPkgRequires = r.targetsPackageRequires(cjpm.Target, r.workspacePath)
	}

	for _, memberPath := range r.members(cjpm.Workspace, r.workspacePath) {
		r.findAllToml(memberPath, "")

		uri := pathToURI(memberPath)
		member, ok := r.modules[uri]
		if !ok {
			continue
		}

		merged := make(map[string]Dependency, len(member.Requires)+len(rootRequires))
		for k, v := range member.Requires {
			merged[k] = v
		}
		for k, v := range rootRequires { // root takes precedence on collisions
			merged[k] = v
		}
		member.Requires = merged

		if member.PackageRequires == nil {
			member.PackageRequires = &PackageRequires{}
		}
		pkgOpt := make(map[string]string, len(member.PackageRequires.PackageOption)+len(rootPkgRequires.PackageOption))
		for k, v := range member.PackageRequires.PackageOption {
			pkgOpt[k] = v
		}
		for k, v := range rootPkgRequires.PackageOption {
			pkgOpt[k] = v
		}
		member.PackageRequires.PackageOption = pkgOpt
		member.PackageRequires.PathOption = mergeUniqueStrings(member.PackageRequires.PathOption, rootPkgRequires.PathOption)
	}
}

func (r *Resolver) members(ws *cjpmWorkspace, base string) []string {
	var paths []string
	for _, member := range ws.Members {
		path := normalizePath(member, base)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			paths = append(paths, path)
		}
	}
	return paths
}

// findAllToml parses one module's cjpm.toml and recurses into its
// dependencies, guarding against cycles via r.visited.
func (r *Resolver) findAllToml(modulePath, expectedName string) {
	uri := pathToURI(modulePath)
	if r.visited[uri] {
		return
	}
	r.visited[uri] = true

	opt := &ModuleOption{}
	tomlPath := filepath.Join(modulePath, cjpmTomlFile)
	cjpm := loadCjpmToml(tomlPath)
	if cjpm == nil {
		r.modules[uri] = opt
		return
	}
	if cjpm.Workspace != nil {
		// Submodules cannot themselves declare a workspace; treat as empty.
		r.modules[uri] = opt
		return
	}

	if cjpm.Package != nil && cjpm.Package.Name != "" {
		opt.Name = cjpm.Package.Name
	} else {
		opt.Name = filepath.Base(modulePath)
	}
	_ = expectedName // name mismatches are tolerated, matching upstream's warn-and-continue

	r.findDependencies(cjpm, opt, modulePath)
	r.modules[uri] = opt
}

func (r *Resolver) findDependencies(cjpm *cjpmToml, opt *ModuleOption, modulePath string) {
	if cjpm.Target != nil {
		pkgReqs := r.targetsPackageRequires(cjpm.Target, modulePath)
		if opt.PackageRequires == nil {
			opt.PackageRequires = &PackageRequires{}
		}
		pkgOpt := make(map[string]string, len(pkgReqs.PackageOption))
		for k, v := range pkgReqs.PackageOption {
			pkgOpt[k] = v
		}
		opt.PackageRequires.PackageOption = pkgOpt
		opt.PackageRequires.PathOption = mergeUniqueStrings(opt.PackageRequires.PathOption, pkgReqs.PathOption)
	}

	if cjpm.FFI != nil {
		if len(cjpm.FFI.Java) > 0 {
			names := make([]string, 0, len(cjpm.FFI.Java))
			for name := range cjpm.FFI.Java {
				names = append(names, name)
			}
			opt.JavaRequires = names
		}
		for _, cModule := range cjpm.FFI.C {
			if cModule.Path != "" {
				r.addToRequirePath(normalizePath(cModule.Path, modulePath))
			}
		}
	}

	if cjpm.Dependencies != nil {
		opt.Requires = r.getRequires(cjpm.Dependencies, modulePath)
	}
	if cjpm.DevDependencies != nil {
		dev := r.getRequires(cjpm.DevDependencies, modulePath)
		if opt.Requires == nil {
			opt.Requires = make(map[string]Dependency, len(dev))
		}
		for k, v := range dev {
			opt.Requires[k] = v
		}
	}
	if cjpm.Target != nil {
		targetReqs := r.targetsRequires(cjpm.Target, modulePath)
		if opt.Requires == nil {
			opt.Requires = make(map[string]Dependency, len(targetReqs))
		}
		for k, v := range targetReqs {
			opt.Requires[k] = v
		}
	}
}

func (r *Resolver) targetsPackageRequires(targets map[string]cjpmTargetCfg, base string) PackageRequires {
	result := PackageRequires{}
	for _, cfg := range targets {
		if cfg.BinDependencies == nil {
			continue
		}
		pkgReqs := r.packageRequires(*cfg.BinDependencies, base)
		if result.PackageOption == nil {
			result.PackageOption = make(map[string]string)
		}
		for k, v := range pkgReqs.PackageOption {
			result.PackageOption[k] = v
		}
		result.PathOption = mergeUniqueStrings(result.PathOption, pkgReqs.PathOption)
	}
	return result
}

func (r *Resolver) packageRequires(bin cjpmBinDependency, base string) PackageRequires {
	result := PackageRequires{PackageOption: make(map[string]string)}
	for _, p := range bin.PathOption {
		libPath := normalizePath(p, base)
		r.addToRequirePath(libPath)
		result.PathOption = append(result.PathOption, pathToURI(libPath))
	}
	for name, p := range bin.PackageOption {
		resolved := normalizePath(p, base)
		r.addToRequirePath(filepath.Dir(resolved))
		result.PackageOption[name] = pathToURI(resolved)
	}
	return result
}

func (r *Resolver) targetsRequires(targets map[string]cjpmTargetCfg, base string) map[string]Dependency {
	result := make(map[string]Dependency)
	for _, cfg := range targets {
		for k, v := range r.getRequires(cfg.Dependencies, base) {
			result[k] = v
		}
		for k, v := range r.getRequires(cfg.DevDependencies, base) {
			result[k] = v
		}
	}
	return result
}

// getRequires resolves one [dependencies]-shaped table: every entry is a
// version string, a local path table, or a git table, each recursively
// parsed after being resolved to a directory.
func (r *Resolver) getRequires(dependencies map[string]any, base string) map[string]Dependency {
	result := make(map[string]Dependency, len(dependencies))
	for name, raw := range dependencies {
		dep, ok := parseDepConfig(raw)
		if !ok {
			continue
		}

		switch {
		case dep.Version != "":
			depPath := filepath.Join(cjpmConfigDir(), repositorySubdir, name+"-"+dep.Version)
			result[name] = Dependency{Path: pathToURI(depPath)}
			r.findAllToml(depPath, name)

		case dep.Path != "":
			depPath := normalizePath(dep.Path, base)
			if r.isWorkspace(depPath) {
				if member := r.targetMemberPath(name, depPath); member != "" {
					depPath = member
				}
			}
			result[name] = Dependency{Path: pathToURI(depPath)}
			r.findAllToml(depPath, name)

		case dep.Git != "":
			gitPath := r.pathByLockFile(base, name)
			if gitPath != "" {
				result[name] = Dependency{Path: pathToURI(gitPath)}
				r.findAllToml(gitPath, name)
			}
		}
	}
	return result
}

func (r *Resolver) pathByLockFile(base, depName string) string {
	lockPath := filepath.Join(base, cjpmLockFile)
	lock := loadCjpmLock(lockPath)
	if lock == nil || !hasEntry(lock, depName) {
		lock = r.rootLock
	}
	if lock == nil {
		log.Printf("no cjpm.lock found for %s, git dependency %s omitted", base, depName)
		return ""
	}
	entry, ok := lock.Requires[depName]
	if !ok || entry.CommitID == "" {
		log.Printf("cjpm.lock has no commit for git dependency %s, omitted", depName)
		return ""
	}
	r.rootLock = lock
	return filepath.Join(cjpmConfigDir(), gitSubdir, depName, entry.CommitID)
}

func hasEntry(lock *cjpmLock, name string) bool {
	_, ok := lock.Requires[name]
	return ok
}

func (r *Resolver) isWorkspace(depPath string) bool {
	cjpm := loadCjpmToml(filepath.Join(depPath, cjpmTomlFile))
	return cjpm != nil && cjpm.Workspace != nil
}

func (r *Resolver) targetMemberPath(depName, workspacePath string) string {
	if depName == "" {
		return ""
	}
	cjpm := loadCjpmToml(filepath.Join(workspacePath, cjpmTomlFile))
	if cjpm == nil || cjpm.Workspace == nil {
		return ""
	}
	for _, member := range r.members(cjpm.Workspace, workspacePath) {
		memberCjpm := loadCjpmToml(filepath.Join(member, cjpmTomlFile))
		if memberCjpm == nil || memberCjpm.Package == nil || memberCjpm.Package.Name == "" {
			continue
		}
		if memberCjpm.Package.Name == depName {
			return member
		}
	}
	return ""
}

func (r *Resolver) addToRequirePath(path string) {
	if path == "" {
		return
	}
	r.requirePath += path + pathSeparator()
}

func loadCjpmToml(path string) *cjpmToml {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cjpm cjpmToml
	if err := toml.Unmarshal(data, &cjpm); err != nil {
		return nil
	}
	return &cjpm
}

func loadCjpmLock(path string) *cjpmLock {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var lock cjpmLock
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil
	}
	return &lock
}
