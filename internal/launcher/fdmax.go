package launcher

import "github.com/honeycomb-run/honeycomb/pkg/rlimit"

// defaultFDMax bounds closeDirectoryFDs' scan whenever RLIMIT_NOFILE
// cannot be read (or reads as 0), so the bound is never left unset: the
// source reads its fd_max variable before ever assigning it from
// RLIMIT_NOFILE, an uninitialized read the spec calls out by name.
const defaultFDMax = 1024

func fdMaxForClose() int {
	cur, _, err := rlimit.Get("RLIMIT_NOFILE")
	if err != nil || cur == 0 {
		return defaultFDMax
	}
	return int(cur)
}
