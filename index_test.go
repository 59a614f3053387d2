package siteinit

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryNames(entries []SiteEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestSiteIndex_Rebuild(t *testing.T) {
	fsys := sitesFS(map[string]string{
		`example.com.js`: `1`,
		`other.org.js`:   `2`,
		`readme.txt`:     `3`,
		`.js`:            `4`,
	})
	fsys[`sites/dir.js/inner.js`] = &fstest.MapFile{Data: []byte(`5`)}

	x := NewSiteIndex(nil)
	assert.Zero(t, x.Len())
	x.AddDir(fsys, `sites`, `pkg/sites`)
	assert.Zero(t, x.Len(), `snapshot unchanged until rebuild`)

	assert.Equal(t, 2, x.Rebuild())
	entries := x.Entries()
	assert.Equal(t, []string{`example.com`, `other.org`}, entryNames(entries))
	assert.Equal(t, `sites/example.com.js`, entries[0].Handle.Path)
	assert.Equal(t, filepath.Join(`pkg/sites`, `example.com.js`), entries[0].Handle.String())
}

func TestSiteIndex_Rebuild_missingDir(t *testing.T) {
	x := NewSiteIndex(nil)
	x.AddDir(fstest.MapFS{}, `missing`, `missing`)
	x.AddDir(sitesFS(map[string]string{`example.com.js`: ``}), `sites`, ``)
	assert.Equal(t, 1, x.Rebuild())
	assert.Equal(t, 2, x.Dirs())
}

func TestSiteIndex_Rebuild_collision(t *testing.T) {
	first := sitesFS(map[string]string{`a.com.js`: `first`, `b.com.js`: ``})
	second := sitesFS(map[string]string{`a.com.js`: `second`})

	x := NewSiteIndex(nil)
	x.AddDir(first, `sites`, `first`)
	x.AddDir(second, `sites`, `second`)
	assert.Equal(t, 2, x.Rebuild())

	entries := x.Entries()
	assert.Equal(t, []string{`a.com`, `b.com`}, entryNames(entries))

	text, err := FSReader{}.ReadText(t.Context(), entries[0].Handle)
	require.NoError(t, err)
	assert.Equal(t, `second`, text)
}

func TestSiteIndex_Rebuild_replacesSnapshot(t *testing.T) {
	fsys := sitesFS(map[string]string{`a.com.js`: ``})
	x := NewSiteIndex(nil)
	x.AddDir(fsys, `sites`, ``)
	x.Rebuild()

	before := x.Entries()

	fsys[`sites/b.com.js`] = &fstest.MapFile{}
	delete(fsys, `sites/a.com.js`)
	assert.Equal(t, []string{`a.com`}, entryNames(x.Entries()), `no rebuild, no change`)

	x.Rebuild()
	assert.Equal(t, []string{`b.com`}, entryNames(x.Entries()))
	assert.Equal(t, []string{`a.com`}, entryNames(before))
}

func TestSiteIndex_Rebuild_concurrentReaders(t *testing.T) {
	small := sitesFS(map[string]string{`a.com.js`: ``})
	large := sitesFS(map[string]string{`a.com.js`: ``, `b.com.js`: ``, `c.com.js`: ``})

	x := NewSiteIndex(nil)
	x.AddDir(small, `sites`, ``)
	x.Rebuild()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Go(func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := len(entryNames(x.Entries()))
				if n != 1 && n != 3 {
					t.Errorf(`observed partial snapshot: %d entries`, n)
					return
				}
			}
		})
	}

	other := NewSiteIndex(nil)
	other.AddDir(large, `sites`, ``)
	for i := range 100 {
		if i%2 == 0 {
			x.dirs = other.dirs
		} else {
			x.dirs = []siteDir{{fsys: small, dir: `sites`}}
		}
		x.Rebuild()
	}

	close(stop)
	wg.Wait()
}

func TestSiteIndex_AddOSDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, `example.com.js`), []byte(`ok`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, `nested.js`), 0o755))

	x := NewSiteIndex(nil)
	x.AddOSDir(dir)
	assert.Equal(t, 1, x.Rebuild())

	entry := x.Entries()[0]
	assert.Equal(t, filepath.Join(dir, `example.com.js`), entry.Handle.String())

	text, err := FSReader{}.ReadText(t.Context(), entry.Handle)
	require.NoError(t, err)
	assert.Equal(t, `ok`, text)
}

func TestSiteIndex_Matches(t *testing.T) {
	x := NewSiteIndex(nil)
	x.AddDir(sitesFS(map[string]string{
		`example.com.js`:      ``,
		`a.example.com.js`:    ``,
		`com.js`:              ``,
		`notexample.com.js`:   ``,
		`xn--bcher-kva.ch.js`: ``,
	}), `sites`, ``)
	x.Rebuild()

	matches := func(host string) []string {
		var names []string
		for e := range x.Matches(host) {
			names = append(names, e.Name)
		}
		slices.Sort(names)
		return names
	}

	assert.Equal(t, []string{`com`, `example.com`}, matches(`example.com`))
	assert.Equal(t, []string{`a.example.com`, `com`, `example.com`}, matches(`a.example.com`))
	assert.Equal(t, []string{`a.example.com`, `com`, `example.com`}, matches(`b.a.example.com`))
	assert.Equal(t, []string{`com`, `notexample.com`}, matches(`notexample.com`))
	assert.Equal(t, []string{`com`, `example.com`}, matches(`EXAMPLE.COM.`))
	assert.Equal(t, []string{`xn--bcher-kva.ch`}, matches(`bücher.ch`))
	assert.Empty(t, matches(``))
	assert.Empty(t, matches(`example.org`))
}

func TestSiteIndex_Rebuild_normalizesNames(t *testing.T) {
	x := NewSiteIndex(nil)
	x.AddDir(sitesFS(map[string]string{
		`Example.COM.js`: `upper`,
		`Bücher.ch.js`:   ``,
	}), `sites`, ``)
	x.AddDir(sitesFS(map[string]string{`example.com.js`: `lower`}), `sites`, ``)
	assert.Equal(t, 2, x.Rebuild())

	var names []string
	for e := range x.Matches(`www.example.com`) {
		names = append(names, e.Name)
		text, err := FSReader{}.ReadText(t.Context(), e.Handle)
		require.NoError(t, err)
		assert.Equal(t, `lower`, text)
	}
	assert.Equal(t, []string{`example.com`}, names)

	names = nil
	for e := range x.Matches(`bücher.ch`) {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{`xn--bcher-kva.ch`}, names)
}

func TestSiteIndex_Matches_earlyStop(t *testing.T) {
	x := NewSiteIndex(nil)
	x.AddDir(sitesFS(map[string]string{`example.com.js`: ``, `com.js`: ``}), `sites`, ``)
	x.Rebuild()
	var n int
	for range x.Matches(`example.com`) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestMatchHost(t *testing.T) {
	assert.True(t, MatchHost(`example.com`, `example.com`))
	assert.True(t, MatchHost(`example.com`, `a.example.com`))
	assert.False(t, MatchHost(`example.com`, `notexample.com`))
	assert.False(t, MatchHost(`a.example.com`, `example.com`))
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, `example.com`, NormalizeHost(`Example.COM.`))
	assert.Equal(t, `xn--bcher-kva.ch`, NormalizeHost(`bücher.ch`))
	assert.Equal(t, ``, NormalizeHost(`.`))
	assert.Equal(t, ``, NormalizeHost(``))
}
