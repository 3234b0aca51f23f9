//go:build !linux && !darwin

package file

import "os"

// statIdentity falls back to portable metadata on platforms without a
// Unix stat structure.
func statIdentity(fi os.FileInfo) []string {
	return fallbackIdentity(fi)
}
