package siteinit

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

const (
	// PackagesEnv lists package root directories, separated by ":".
	PackagesEnv = `CONKEROR_PACKAGES`

	// DefaultPackageDir is the package root used when PackagesEnv is unset,
	// relative to the user's home directory.
	DefaultPackageDir = `.conkerorrc`

	modulesDir = `modules`
	sitesDir   = `sites`
)

// PackageRoots resolves the package root directories: the entries of
// PackagesEnv, if set, otherwise DefaultPackageDir under home. Empty entries
// are ignored. The lookup function is usually [os.LookupEnv].
func PackageRoots(lookup func(key string) (string, bool), home string) []string {
	if lookup != nil {
		if v, ok := lookup(PackagesEnv); ok {
			var roots []string
			for _, root := range strings.Split(v, `:`) {
				if root != `` {
					roots = append(roots, root)
				}
			}
			return roots
		}
	}
	if home == `` {
		return nil
	}
	return []string{filepath.Join(home, DefaultPackageDir)}
}

// Import loads each readable package root, in order, returning the number of
// packages imported. Unreadable roots are skipped.
//
// The modules directory of every package is added to the module search path,
// which accumulates across calls (later packages first), then, per package: each module is required, each
// top-level script is loaded into the host runtime, and the sites directory
// is registered with the index. The index is not rebuilt.
//
// Import must be called before Run, or on the event loop.
func (x *Instance) Import(roots []string) int {
	var packages []string
	for _, root := range roots {
		if isReadableDir(root) {
			packages = append(packages, root)
		} else {
			x.logger.Debug().
				Str(`package`, root).
				Log(`skipping unreadable package`)
		}
	}

	for _, root := range packages {
		if dir := filepath.Join(root, modulesDir); isReadableDir(dir) {
			x.moduleFolders = append([]string{dir}, x.moduleFolders...)
		}
	}
	req := x.enableHostRequire(slices.Clone(x.moduleFolders))

	for _, root := range packages {
		x.logger.Info().
			Str(`package`, root).
			Log(`importing`)

		if dir := filepath.Join(root, modulesDir); isReadableDir(dir) {
			for _, file := range scriptFiles(dir) {
				if _, err := requireModule(req, file); err != nil {
					x.logger.Err().
						Err(err).
						Str(`module`, file).
						Log(`failed to require module`)
				}
			}
		}

		for _, file := range scriptFiles(root) {
			if err := x.loadScript(file); err != nil {
				x.logger.Err().
					Err(err).
					Str(`script`, file).
					Log(`failed to load script`)
			}
		}

		if dir := filepath.Join(root, sitesDir); isReadableDir(dir) {
			x.index.AddOSDir(dir)
		}
	}

	return len(packages)
}

// loadScript evaluates a file directly in the host runtime.
func (x *Instance) loadScript(file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return x.evaluator.Evaluate(x.host, file, string(b), nil)
}

func requireModule(req *require.RequireModule, file string) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, PanicError{Value: r}
		}
	}()
	return req.Require(file)
}

// scriptFiles lists the script files directly within dir, in name order.
func scriptFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ScriptSuffix) {
			continue
		}
		file := filepath.Join(dir, e.Name())
		if info, err := os.Stat(file); err != nil || info.IsDir() {
			continue
		}
		files = append(files, file)
	}
	return files
}

func isReadableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
