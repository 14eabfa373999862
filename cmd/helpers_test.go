package cmd

import (
	"bytes"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/kong"

	"github.com/lepinkainen/bibsync/internal/cache"
	"github.com/lepinkainen/bibsync/internal/enrichment"
	"github.com/lepinkainen/bibsync/internal/testutil"
)

type cmdEnv struct {
	*testutil.TestEnv
	out *bytes.Buffer
}

// setupCmd points the config at a sandbox, swaps the real providers for the
// given fakes and captures command output.
func setupCmd(t *testing.T, providers ...*testutil.FakeProvider) *cmdEnv {
	t.Helper()

	env := testutil.NewTestEnv(t)
	testutil.SetTestConfig(t, env)
	testutil.SetViperValue(t, "retry.base_delay", "1ms")
	testutil.SetViperValue(t, "retry.jitter", 0.0)

	if len(providers) == 0 {
		p := testutil.NewFakeProvider("semanticscholar")
		p.CitationCount = 7
		providers = append(providers, p)
	}

	origProviders := newProviders
	newProviders = func(*cache.CacheDB) []enrichment.Provider {
		out := make([]enrichment.Provider, len(providers))
		for i, p := range providers {
			out[i] = p
		}
		return out
	}

	buf := &bytes.Buffer{}
	origStdout := stdout
	stdout = buf

	t.Cleanup(func() {
		newProviders = origProviders
		stdout = origStdout
	})
	return &cmdEnv{TestEnv: env, out: buf}
}

// run parses args like the real binary and runs the selected command.
func (e *cmdEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	e.out.Reset()

	var cli CLI
	opts := append(kongOptions(), kong.Exit(func(code int) {
		t.Fatalf("unexpected Kong exit %d", code)
	}))
	parser, err := kong.New(&cli, opts...)
	assert.NoError(t, err)

	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	updateGlobalConfig(&cli)
	return ctx.Run()
}

func (e *cmdEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	assert.NoError(t, e.run(t, args...))
	return e.out.String()
}
