package lib

import (
	"os"
	"path/filepath"
	"runtime"

	vlib "github.com/mcuadros/go-version"
	"github.com/pkg/errors"
)

var (
	ErrNoInstall   = errors.New("no backend versions found in install folder")
	ErrOldInstall  = errors.New("newest backend install is older than the required version")
	ErrMissingTool = errors.New("backend bin path does not have the tool binary")
)

// ToolInstall is a versioned installation of an external verification tool.
type ToolInstall struct {
	Root    string
	Version string
	BinPath string
	Binary  string
}

/*
	Find the newest installed version of a tool below root. Each version
	lives in its own directory (root/<version>/bin/<binary>), the same way
	EDA suites lay out side-by-side installs.
*/
func FindTool(root, binary, minVersion string) (*ToolInstall, error) {
	if root == "" {
		root = filepath.Join(GetProgramFiles(), binary)
	}

	versions, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "read install root %s", root)
	}

	latestVersion := ""
	for _, e := range versions {
		if !e.IsDir() {
			continue
		}

		version := e.Name()
		if latestVersion == "" || vlib.CompareSimple(latestVersion, version) == -1 {
			latestVersion = version
		}
	}

	if latestVersion == "" {
		return nil, errors.Wrapf(ErrNoInstall, "root %s", root)
	}

	if minVersion != "" && !vlib.Compare(vlib.Normalize(latestVersion), vlib.Normalize(minVersion), ">=") {
		return nil, errors.Wrapf(ErrOldInstall, "found %s, need %s", latestVersion, minVersion)
	}

	binPath := filepath.Join(root, latestVersion, "bin")
	exe := binary
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}

	if _, err := os.Stat(filepath.Join(binPath, exe)); err != nil {
		return nil, errors.Wrapf(ErrMissingTool, "%s in %s", exe, binPath)
	}

	return &ToolInstall{
		Root:    root,
		Version: latestVersion,
		BinPath: binPath,
		Binary:  exe,
	}, nil
}

func (ti *ToolInstall) GetBinPath() string {
	return ti.BinPath
}

// Command is the absolute path of the tool binary.
func (ti *ToolInstall) Command() string {
	return filepath.Join(ti.BinPath, ti.Binary)
}
