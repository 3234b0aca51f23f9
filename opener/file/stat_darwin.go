//go:build darwin

package file

import (
	"os"
	"strconv"
	"syscall"
)

// statIdentity extracts the stable identity fields from a stat result:
// device, inode, mode, link count, owner, size, mtime, ctime. Access time
// is skipped so reads never perturb cache keys.
func statIdentity(fi os.FileInfo) []string {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fallbackIdentity(fi)
	}
	return []string{
		strconv.FormatInt(int64(st.Dev), 10),
		strconv.FormatUint(uint64(st.Ino), 10),
		strconv.FormatUint(uint64(st.Mode), 10),
		strconv.FormatUint(uint64(st.Nlink), 10),
		strconv.FormatUint(uint64(st.Uid), 10),
		strconv.FormatUint(uint64(st.Gid), 10),
		strconv.FormatInt(st.Size, 10),
		strconv.FormatInt(st.Mtimespec.Nano(), 10),
		strconv.FormatInt(st.Ctimespec.Nano(), 10),
	}
}
