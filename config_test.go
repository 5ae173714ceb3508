package phoo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
max_depth: 5
strict: false
namepath_separator: "."
module_paths: [lib, vendor/lib]
source_ext: .phoo
ambient:
  answer: hi
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.MaxDepth)
	assert.Equal(t, 5, *cfg.MaxDepth)
	require.NotNil(t, cfg.Strict)
	assert.False(t, *cfg.Strict)
	require.NotNil(t, cfg.NamepathSeparator)
	assert.Equal(t, ".", *cfg.NamepathSeparator)
	assert.Equal(t, []string{"lib", "vendor/lib"}, cfg.ModulePaths)
	assert.Equal(t, ".phoo", cfg.SourceExt)
	assert.Equal(t, map[string]string{"answer": "hi"}, cfg.Ambient)
	assert.Len(t, cfg.Options(), 5)

	empty, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Options())

	for _, tc := range []struct {
		name string
		src  string
		err  string
	}{
		{"unknown field", "bogus: 1\n", "field bogus not found"},
		{"bad type", "max_depth: deep\n", "cannot unmarshal"},
		{"negative depth", "max_depth: -1\n", "max_depth must not be negative"},
		{"empty separator", "namepath_separator: \"\"\n", "namepath_separator must not be empty"},
		{"spaced separator", "namepath_separator: \" \"\n", "must not contain whitespace"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mods", "shapes"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "mods", "shapes", "square.ph"),
		[]byte(`to area [ dup * ]`), 0o644))

	filename := filepath.Join(dir, "phoo.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(strings.Join([]string{
		"max_depth: 40",
		"strict: false",
		`namepath_separator: "."`,
		"module_paths: [" + filepath.Join(dir, "mods") + "]",
		"ambient: {answer: hi}",
	}, "\n")), 0o644))

	cfg, err := LoadConfigFile(filename)
	require.NoError(t, err)

	_, err = LoadConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	threadTestCases{
		threadTest("modules from paths").
			withOptions(WithConfig(cfg)).
			do(`import shapes.square 3 square.area`).
			expectStack("9"),
		threadTest("ambient text").
			withOptions(WithConfig(cfg)).
			do(`answer`).
			expectStack(`"hi"`),
		threadTest("max depth").
			withOptions(WithConfig(cfg)).
			do(`to loop [ loop ] loop`).
			expectError(StackOverflowError),
		threadTest("nil config").
			withOptions(WithConfig(nil)).
			do(`nope`).
			expectError(UnknownWordError),
	}.run(t)
}

func TestNew_options(t *testing.T) {
	ctx := context.Background()
	ip := newTestInterp(t, WithPrelude(false))
	_, err := ip.Run(ctx, `1 dup`)
	assert.ErrorIs(t, err, UnknownWordError, "dup comes from the prelude")
	stack, err := ip.Run(ctx, `1 0 pick`)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1"}, renderValues(stack))

	var out, tee strings.Builder
	ip = newTestInterp(t, WithOutput(&out), WithTee(&tee))
	_, err = ip.Run(ctx, `$ "hi" echo`)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.String())
	assert.Equal(t, "hi", tee.String())

	assert.Equal(t, ":", ip.NamepathSeparator())
	assert.Equal(t, BuiltinsModule, ip.Builtins().Name())
	assert.Contains(t, ip.Modules(), MainModule)
}
