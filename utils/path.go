package utils

import (
	"os"
	"path/filepath"
)

// AbsPath resolves rel against the directory holding the running binary.
// Used for the default config search path.
func AbsPath(rel string) string {
	exe, err := os.Executable()
	if err != nil {
		if abs, aerr := filepath.Abs(rel); aerr == nil {
			return abs
		}
		return rel
	}
	return filepath.Join(filepath.Dir(exe), rel)
}
