package siteinit

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// ScriptSuffix identifies site scripts, within a sites directory.
const ScriptSuffix = `.js`

type (
	// ScriptHandle is an opaque, readable reference to a script file, valid
	// as of the [SiteIndex.Rebuild] that produced it.
	ScriptHandle struct {
		FS fs.FS
		// Path is the slash-separated path within FS.
		Path string
		// Source is a human-readable identity, e.g. the OS path.
		Source string
	}

	// SiteEntry is a single site script, named for the host it applies to.
	SiteEntry struct {
		Handle ScriptHandle
		// Name is the file base name, without [ScriptSuffix], normalized
		// using [NormalizeHost].
		Name string
	}

	// SiteIndex is a snapshot of the site scripts available across all
	// registered sites directories.
	//
	// The snapshot is replaced wholesale by Rebuild, and is never patched.
	// Readers always observe a complete snapshot. AddDir and Rebuild are
	// expected to be called from a single goroutine.
	SiteIndex struct {
		logger  *logiface.Logger[logiface.Event]
		entries atomic.Pointer[[]SiteEntry]
		dirs    []siteDir
	}

	siteDir struct {
		fsys   fs.FS
		dir    string
		source string
	}
)

// String returns the handle's Source, falling back to Path.
func (x ScriptHandle) String() string {
	if x.Source != `` {
		return x.Source
	}
	return x.Path
}

// NewSiteIndex returns an index with no sites directories, and an empty
// snapshot.
func NewSiteIndex(logger *logiface.Logger[logiface.Event]) *SiteIndex {
	x := &SiteIndex{logger: logger}
	x.entries.Store(new([]SiteEntry))
	return x
}

// AddDir registers dir, within fsys, as a sites directory. The source is used
// to identify scripts in diagnostics. The snapshot is unaffected until the
// next Rebuild.
func (x *SiteIndex) AddDir(fsys fs.FS, dir string, source string) {
	x.dirs = append(x.dirs, siteDir{fsys: fsys, dir: dir, source: source})
}

// AddOSDir registers a sites directory by OS path.
func (x *SiteIndex) AddOSDir(dir string) {
	x.AddDir(os.DirFS(dir), `.`, dir)
}

// Dirs returns the number of registered sites directories.
func (x *SiteIndex) Dirs() int {
	return len(x.dirs)
}

// Rebuild enumerates every registered sites directory, in registration order,
// and atomically replaces the snapshot. It returns the new number of entries.
//
// Only non-directory entries with names ending in [ScriptSuffix] are indexed.
// Names are normalized like hosts, so e.g. "Example.COM.js" and
// "example.com.js" are the same site. If two scripts share a name, the last
// one enumerated wins, but keeps the position of the first.
func (x *SiteIndex) Rebuild() int {
	var (
		entries []SiteEntry
		byName  = make(map[string]int)
	)

	for _, d := range x.dirs {
		dirEntries, err := fs.ReadDir(d.fsys, d.dir)
		if err != nil {
			x.logger.Warning().
				Err(err).
				Str(`dir`, d.source).
				Log(`failed to read sites directory`)
			continue
		}

		for _, de := range dirEntries {
			fileName := de.Name()
			if !strings.HasSuffix(fileName, ScriptSuffix) {
				continue
			}

			p := path.Join(d.dir, fileName)

			// follows symlinks, unlike de.IsDir
			if info, err := fs.Stat(d.fsys, p); err != nil || info.IsDir() {
				continue
			}

			name := NormalizeHost(strings.TrimSuffix(fileName, ScriptSuffix))
			if name == `` {
				continue
			}

			entry := SiteEntry{
				Name: name,
				Handle: ScriptHandle{
					FS:     d.fsys,
					Path:   p,
					Source: joinSource(d.source, fileName),
				},
			}

			if i, ok := byName[name]; ok {
				x.logger.Debug().
					Str(`site`, name).
					Str(`replaced`, entries[i].Handle.String()).
					Str(`with`, entry.Handle.String()).
					Log(`duplicate site script`)
				entries[i] = entry
				continue
			}

			byName[name] = len(entries)
			entries = append(entries, entry)
		}
	}

	x.entries.Store(&entries)

	x.logger.Info().
		Int(`dirs`, len(x.dirs)).
		Int(`sites`, len(entries)).
		Log(`site index rebuilt`)

	return len(entries)
}

// Entries returns a copy of the current snapshot.
func (x *SiteIndex) Entries() []SiteEntry {
	entries := *x.entries.Load()
	return append([]SiteEntry(nil), entries...)
}

// Len returns the number of entries in the current snapshot.
func (x *SiteIndex) Len() int {
	return len(*x.entries.Load())
}

func (x *SiteIndex) snapshot() []SiteEntry {
	return *x.entries.Load()
}

func joinSource(source, fileName string) string {
	if source == `` {
		return fileName
	}
	return filepath.Join(source, fileName)
}
