//go:build !windows

package lib

import (
	"os"
	"path/filepath"
)

func GetProgramFiles() string {
	return "/opt"
}

func GetLocalAppData() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}

	return filepath.Join(os.TempDir(), "capsynth")
}
