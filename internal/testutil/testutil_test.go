package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bibsync/internal/config"
	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/identifier"
)

func TestTestEnv_Path(t *testing.T) {
	env := NewTestEnv(t)

	got := env.Path("a", "b.txt")
	assert.Equal(t, filepath.Join(env.RootDir(), "a", "b.txt"), got)
}

func TestTestEnv_WriteReadFile(t *testing.T) {
	env := NewTestEnv(t)

	path := env.WriteFileString("nested/dir/file.csv", "id,doi\n")
	assert.True(t, env.FileExists("nested/dir/file.csv"))
	assert.Equal(t, env.Path("nested/dir/file.csv"), path)
	assert.Equal(t, "id,doi\n", env.ReadFileString("nested/dir/file.csv"))
	assert.False(t, env.FileExists("missing.csv"))
}

func TestGolden(t *testing.T) {
	t.Setenv(UpdateGoldenEnv, "")
	env := NewTestEnv(t)
	env.WriteFileString("golden/out.txt", "hello\n")
	env.WriteFileString("golden/out.json", `{"a": 1, "b": [1, 2]}`)
	env.WriteFileString("golden/out.yaml", "a: 1\nb:\n  - 1\n  - 2\n")

	g := NewGolden(t, env.Path("golden"))
	g.Equal("out.txt", []byte("hello\n"))
	g.EqualJSON("out.json", []byte(`{"b":[1,2],"a":1}`))
	g.EqualYAML("out.yaml", []byte("b: [1, 2]\na: 1\n"))
}

func TestGoldenUpdateMode(t *testing.T) {
	t.Setenv(UpdateGoldenEnv, "true")
	env := NewTestEnv(t)

	g := NewGolden(t, env.Path("golden"))
	g.EqualJSON("new/result.json", []byte(`{"id":"p1"}`))

	assert.Equal(t, `{"id":"p1"}`, env.ReadFileString("golden/new/result.json"))
}

func TestSetTestConfig(t *testing.T) {
	env := NewTestEnv(t)
	config.LibraryDBFile = "/outside/bibsync.db"

	t.Run("inside", func(t *testing.T) {
		SetTestConfig(t, env)
		assert.Equal(t, env.Path("bibsync.db"), config.LibraryDBFile)
		assert.Equal(t, env.Path("cache.db"), config.CacheDBFile)
		assert.Equal(t, 7, viper.GetInt("enrichment.refresh_interval_days"))
	})

	assert.Equal(t, "/outside/bibsync.db", config.LibraryDBFile)
	config.LibraryDBFile = ""
}

func TestSetViperValue(t *testing.T) {
	ResetConfig(t)
	viper.Set("sync.max_per_cycle", 10)

	t.Run("override", func(t *testing.T) {
		SetViperValue(t, "sync.max_per_cycle", 99)
		assert.Equal(t, 99, viper.GetInt("sync.max_per_cycle"))
	})

	assert.Equal(t, 10, viper.GetInt("sync.max_per_cycle"))
}

func TestFakeProvider(t *testing.T) {
	p := NewFakeProvider("fake")
	p.CitationCount = 5
	p.Discovered = identifier.Map{identifier.OpenAlex: "W1"}

	ids := identifier.Map{identifier.DOI: "10.1000/a"}
	result, err := p.Enrich(context.Background(), ids, &enrichment.Data{Venue: enrichment.Ptr("KDD")})
	require.NoError(t, err)
	assert.Equal(t, 5, *result.Data.CitationCount)
	assert.Equal(t, "KDD", *result.Data.Venue)
	assert.Equal(t, "W1", result.Identifiers.Get(identifier.OpenAlex))
	assert.Equal(t, 1, p.Calls())
	assert.True(t, p.LastIdentifiers().Equal(ids))

	boom := errors.New("boom")
	_, err = p.Failing(boom).Enrich(context.Background(), ids, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, p.Calls())
}
