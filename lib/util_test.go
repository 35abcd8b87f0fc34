package lib

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnap(t *testing.T) {
	assert.Equal(t, 0.125, Snap(0.1249, Grid))
	assert.Equal(t, 2.21, Snap(2.87-0.66, Grid))
	assert.Equal(t, 0.0, Snap(-0.0001, Grid))
	assert.Equal(t, 1.23456, Snap(1.23456, 0))
}

func TestSnapUp(t *testing.T) {
	assert.Equal(t, 0.13, SnapUp(0.1251, Grid))
	assert.Equal(t, 0.125, SnapUp(0.125, Grid))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.83333, Round(0.833333333, Precision))
	assert.Equal(t, 0.0, Round(-0.000001, Precision))
}

func TestMarshalRoundTrip(t *testing.T) {
	in := map[string]float64{"a": 1.5}
	data, err := Marshal(in)
	require.NoError(t, err)

	out := map[string]float64{}
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestFindTool(t *testing.T) {
	root := t.TempDir()
	exe := "checker"
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}

	for _, v := range []string{"1.2.0", "1.10.1", "0.9"} {
		bin := filepath.Join(root, v, "bin")
		require.NoError(t, os.MkdirAll(bin, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(bin, exe), []byte("#!/bin/sh\n"), 0o755))
	}

	install, err := FindTool(root, "checker", "1.2")
	require.NoError(t, err)
	assert.Equal(t, "1.10.1", install.Version)
	assert.Equal(t, filepath.Join(root, "1.10.1", "bin", exe), install.Command())

	_, err = FindTool(root, "checker", "2.0")
	assert.True(t, errors.Is(err, ErrOldInstall))

	_, err = FindTool(root, "other", "")
	assert.True(t, errors.Is(err, ErrMissingTool))

	_, err = FindTool(t.TempDir(), "checker", "")
	assert.True(t, errors.Is(err, ErrNoInstall))
}
