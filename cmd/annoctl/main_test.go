package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const layer = `[
  {"id":"p1","type":"point","point":[1,2,3]},
  {"id":"p2","type":"point","point":[4,5,6]},
  {"id":"c1","type":"cell","point":[7,8,9],"category":"neuron","description":"soma"}
]`

type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T, mirrorURL string) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("layer:\n  rank: 3\nstorage:\n  backend: local\n  path: %s\nsnapshot:\n  keep: 2\nlog:\n  level: error\n", filepath.Join(dir, "data"))
	if mirrorURL != "" {
		cfg += fmt.Sprintf("mirror:\n  url: %s\n  key: layer:test\n  interval: 10ms\n", mirrorURL)
	}
	path := filepath.Join(dir, "annostore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &env{dir: dir, config: path}
}

func (e *env) run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e *env) importLayer(t *testing.T) {
	t.Helper()
	src := filepath.Join(e.dir, "layer.json")
	require.NoError(t, os.WriteFile(src, []byte(layer), 0o600))
	out, err := e.run(t, context.Background(), "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 annotations")
}

func TestImportExport(t *testing.T) {
	e := newEnv(t, "")
	e.importLayer(t)

	out, err := e.run(t, context.Background(), "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"p1"`)
	assert.Contains(t, out, `"category":"neuron"`)

	out, err = e.run(t, context.Background(), "export", "--where", `kind == "cell"`)
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"c1"`)
	assert.NotContains(t, out, `"id":"p1"`)

	_, err = e.run(t, context.Background(), "export", "--where", "kind ==")
	assert.Error(t, err)

	dst := filepath.Join(e.dir, "out.json")
	_, err = e.run(t, context.Background(), "export", "--pretty", dst)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {")
}

func TestImport_Invalid(t *testing.T) {
	e := newEnv(t, "")
	src := filepath.Join(e.dir, "bad.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"type":"point"}]`), 0o600))

	_, err := e.run(t, context.Background(), "import", src)
	require.Error(t, err)

	out, err := e.run(t, context.Background(), "snapshot", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPack(t *testing.T) {
	e := newEnv(t, "")
	e.importLayer(t)

	dst := filepath.Join(e.dir, "layer.bin")
	out, err := e.run(t, context.Background(), "pack", dst)
	require.NoError(t, err)
	assert.Regexp(t, `point\s+2\s+0`, out)
	assert.Regexp(t, `cell\s+1\s+\d+`, out)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("%d bytes", info.Size()))
}

func TestSnapshotCommands(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "")
	e.importLayer(t)

	for range 2 {
		out, err := e.run(t, ctx, "snapshot", "save")
		require.NoError(t, err)
		assert.Contains(t, out, "snapshots/")
	}

	out, err := e.run(t, ctx, "snapshot", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "* "))

	out, err = e.run(t, ctx, "snapshot", "load")
	require.NoError(t, err)
	assert.Equal(t, "restored 3 annotations\n", out)

	out, err = e.run(t, ctx, "snapshot", "prune")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "deleted "))

	out, err = e.run(t, ctx, "snapshot", "prune", "--keep", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "deleted "))

	out, err = e.run(t, ctx, "inspect")
	require.NoError(t, err)
	assert.Regexp(t, `annotations\s+3`, out)
	assert.Regexp(t, `point\s+2`, out)
	assert.Regexp(t, `rank\s+3`, out)
}

func TestSnapshotLoad_Empty(t *testing.T) {
	e := newEnv(t, "")
	out, err := e.run(t, context.Background(), "snapshot", "load")
	require.NoError(t, err)
	assert.Equal(t, "no snapshot\n", out)
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	src := newEnv(t, url)
	src.importLayer(t)
	out, err := src.run(t, ctx, "push")
	require.NoError(t, err)
	assert.Contains(t, out, "pushed 3 annotations to layer:test")

	dst := newEnv(t, url)
	out, err = dst.run(t, ctx, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "pulled 3 annotations")

	out, err = dst.run(t, ctx, "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"c1"`)
}

func TestSync_SeedsEmptyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	e := newEnv(t, "redis://"+mr.Addr())
	e.importLayer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	out, err := e.run(t, ctx, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "snapshots/")
	assert.True(t, mr.Exists("layer:test"))
}

func TestMirrorRequired(t *testing.T) {
	e := newEnv(t, "")
	for _, cmd := range []string{"push", "pull", "sync"} {
		_, err := e.run(t, context.Background(), cmd)
		assert.ErrorContains(t, err, "mirror.url", cmd)
	}
}

func TestOverrides(t *testing.T) {
	e := newEnv(t, "")
	e.importLayer(t)

	other := t.TempDir()
	out, err := e.run(t, context.Background(), "--path", other, "snapshot", "list")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = e.run(t, context.Background(), "--log-level", "loud", "export")
	assert.ErrorContains(t, err, "log.level")
}
