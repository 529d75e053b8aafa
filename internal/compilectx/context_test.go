package compilectx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultContext(t *testing.T) {
	c := Default()
	require.Equal(t, 0, c.Verbosity)
	require.Equal(t, ImplicitPushWarn, c.ImplicitPushes)
	require.True(t, c.Optimize)
	require.Equal(t, TargetAsm, c.Target)
}

func TestDefaultContextHonorsEnvOverride(t *testing.T) {
	t.Setenv("TXSC_OPTIMIZE", "false")
	t.Setenv("TXSC_TARGET", "hex")
	c := Default()
	require.False(t, c.Optimize)
	require.Equal(t, TargetHex, c.Target)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txsc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"verbosity: 2\nimplicit_pushes: deny\noptimize: false\ntarget: hex\n",
	), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Verbosity)
	require.Equal(t, ImplicitPushDeny, c.ImplicitPushes)
	require.False(t, c.Optimize)
	require.Equal(t, TargetHex, c.Target)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txsc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: asm\n"), 0o644))

	t.Setenv("TXSC_TARGET", "hex")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, TargetHex, c.Target)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
