package siteinit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

type (
	stubDoc struct {
		uri      *url.URL
		rt       *goja.Runtime
		object   any
		window   any
		location string
		id       DocumentID
		noFrame  bool
	}

	stubFrame struct {
		object   any
		location string
	}
)

func newStubDoc(t *testing.T, id DocumentID, rawURL string) *stubDoc {
	t.Helper()
	uri, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &stubDoc{
		id:       id,
		uri:      uri,
		location: rawURL,
		rt:       goja.New(),
		object:   map[string]any{`uri`: rawURL},
		window:   map[string]any{},
	}
}

func (x *stubDoc) ID() DocumentID { return x.id }

func (x *stubDoc) URI() *url.URL { return x.uri }

func (x *stubDoc) TopFrame() Frame {
	if x.noFrame {
		return nil
	}
	return stubFrame{location: x.location, object: x.window}
}

func (x *stubDoc) Runtime() *goja.Runtime { return x.rt }

func (x *stubDoc) Object() any { return x.object }

func (x stubFrame) Location() string { return x.location }

func (x stubFrame) Object() any { return x.object }

// sitesFS builds a sites directory, at "sites", from name to script text.
func sitesFS(scripts map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(scripts))
	for name, text := range scripts {
		fsys[`sites/`+name] = &fstest.MapFile{Data: []byte(text)}
	}
	return fsys
}

// global returns the exported value of a global in rt, or nil if undefined.
func global(rt *goja.Runtime, name string) any {
	v := rt.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v.Export()
}

// logBuffer collects JSON log lines, and is safe for concurrent writes.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *logBuffer) Write(b []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(b)
}

// Entries decodes every line logged so far.
func (x *logBuffer) Entries(t *testing.T) []map[string]any {
	t.Helper()
	x.mu.Lock()
	defer x.mu.Unlock()
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(x.buf.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), scanner.Text())
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

// Messages returns the entries logged with msg.
func (x *logBuffer) Messages(t *testing.T, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, entry := range x.Entries(t) {
		if entry[`msg`] == msg {
			out = append(out, entry)
		}
	}
	return out
}

// newTestLogger returns a stumpy logger, writing every level to the returned
// buffer.
func newTestLogger() (*logiface.Logger[logiface.Event], *logBuffer) {
	buf := new(logBuffer)
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
	return logger, buf
}
