package siteinit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constProvider(vars map[string]any) Provider {
	return func(Document) (map[string]any, error) { return vars, nil }
}

func TestProviders_Register(t *testing.T) {
	x := NewProviders(nil)
	assert.ErrorIs(t, x.Register(`nil`, nil), ErrNilFunc)
	require.NoError(t, x.Register(`a`, constProvider(nil)))
	require.NoError(t, x.Register(`b`, constProvider(nil)))
	require.NoError(t, x.Register(`a`, constProvider(nil)))
	assert.Equal(t, []string{`a`, `b`}, x.Names())
	assert.Equal(t, 2, x.Len())
}

func TestProviders_Collect_empty(t *testing.T) {
	x := NewProviders(nil)
	assert.Empty(t, x.Collect(newStubDoc(t, 1, `https://example.com/`)))
}

func TestProviders_Collect_lastWins(t *testing.T) {
	x := NewProviders(nil)
	require.NoError(t, x.Register(`p1`, constProvider(map[string]any{`k`: 1, `a`: `x`})))
	require.NoError(t, x.Register(`p2`, constProvider(map[string]any{`k`: 2})))
	assert.Equal(t, map[string]any{`k`: 2, `a`: `x`}, x.Collect(newStubDoc(t, 1, `https://example.com/`)))
}

func TestProviders_Register_replaceKeepsPosition(t *testing.T) {
	x := NewProviders(nil)
	require.NoError(t, x.Register(`p1`, constProvider(map[string]any{`k`: 1})))
	require.NoError(t, x.Register(`p2`, constProvider(map[string]any{`k`: 2})))
	require.NoError(t, x.Register(`p1`, constProvider(map[string]any{`k`: 3})))
	assert.Equal(t, map[string]any{`k`: 2}, x.Collect(newStubDoc(t, 1, `https://example.com/`)))
}

func TestProviders_Produce(t *testing.T) {
	x := NewProviders(nil)
	require.NoError(t, x.Register(`p1`, constProvider(map[string]any{`b`: 1, `a`: 2})))
	require.NoError(t, x.Register(`p2`, func(Document) (map[string]any, error) {
		return nil, errors.New(`some error`)
	}))
	require.NoError(t, x.Register(`p3`, func(Document) (map[string]any, error) {
		panic(`some panic`)
	}))
	require.NoError(t, x.Register(`p4`, constProvider(map[string]any{`a`: 3})))

	assert.Equal(t, []Variable{
		{Provider: `p1`, Name: `a`, Value: 2},
		{Provider: `p1`, Name: `b`, Value: 1},
		{Provider: `p4`, Name: `a`, Value: 3},
	}, x.Produce(newStubDoc(t, 1, `https://example.com/`)))
}

func TestProviders_Produce_receivesDocument(t *testing.T) {
	x := NewProviders(nil)
	require.NoError(t, x.Register(`host`, func(doc Document) (map[string]any, error) {
		return map[string]any{`host`: doc.URI().Hostname()}, nil
	}))
	assert.Equal(t, map[string]any{`host`: `a.example.com`}, x.Collect(newStubDoc(t, 1, `https://a.example.com/x`)))
}

func TestProviders_collect_origin(t *testing.T) {
	x := NewProviders(nil)
	require.NoError(t, x.Register(`p1`, constProvider(map[string]any{`a`: 1, `b`: 2})))
	require.NoError(t, x.Register(`p2`, constProvider(map[string]any{`a`: 3})))

	vars, origin := x.collect(newStubDoc(t, 1, `https://example.com/`))
	assert.Equal(t, map[string]any{`a`: 3, `b`: 2}, vars)
	assert.Equal(t, map[string]string{`a`: `p2`, `b`: `p1`}, origin)
}
