package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv rewrites golden files from test output when set to "true".
const UpdateGoldenEnv = "UPDATE_GOLDEN"

// Golden compares command output against files under a testdata directory.
type Golden struct {
	t      *testing.T
	dir    string
	update bool
}

func NewGolden(t *testing.T, dir string) *Golden {
	t.Helper()
	return &Golden{t: t, dir: dir, update: os.Getenv(UpdateGoldenEnv) == "true"}
}

func (g *Golden) Path(name string) string {
	return filepath.Join(g.dir, name)
}

// expected returns the stored golden content. In update mode it stores
// actual instead and reports false so the caller skips the comparison.
func (g *Golden) expected(name string, actual []byte) ([]byte, bool) {
	g.t.Helper()

	path := g.Path(name)
	if g.update {
		require.NoError(g.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(g.t, os.WriteFile(path, actual, 0o644))
		g.t.Logf("updated golden file %s", path)
		return nil, false
	}

	want, err := os.ReadFile(path)
	require.NoError(g.t, err, "missing golden file %s; rerun with %s=true", path, UpdateGoldenEnv)
	return want, true
}

// Equal requires a byte-for-byte match.
func (g *Golden) Equal(name string, actual []byte) {
	g.t.Helper()
	if want, ok := g.expected(name, actual); ok {
		assert.Equal(g.t, string(want), string(actual), "output differs from %s", name)
	}
}

// EqualJSON ignores formatting and key order.
func (g *Golden) EqualJSON(name string, actual []byte) {
	g.t.Helper()
	if want, ok := g.expected(name, actual); ok {
		assert.JSONEq(g.t, string(want), string(actual), "JSON output differs from %s", name)
	}
}

// EqualYAML decodes both documents and compares the resulting values.
func (g *Golden) EqualYAML(name string, actual []byte) {
	g.t.Helper()
	want, ok := g.expected(name, actual)
	if !ok {
		return
	}

	var wantDoc, gotDoc any
	require.NoError(g.t, yaml.Unmarshal(want, &wantDoc), "golden file %s is not YAML", name)
	require.NoError(g.t, yaml.Unmarshal(actual, &gotDoc), "output is not YAML")
	assert.Equal(g.t, wantDoc, gotDoc, "YAML output differs from %s", name)
}
