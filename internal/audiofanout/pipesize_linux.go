// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

//go:build linux

package audiofanout

import (
	"os"

	"golang.org/x/sys/unix"
)

// setPipeSize grows the pipe backing r (and its write end) to at least n
// bytes via F_SETPIPE_SZ. Best-effort: the kernel may clamp or refuse the
// request (e.g. under a restrictive /proc/sys/fs/pipe-max-size, or without
// CAP_SYS_RESOURCE for sizes above the default limit), and a failure here
// must never fail Open.
func setPipeSize(r *os.File, n int) {
	_, _ = unix.FcntlInt(r.Fd(), unix.F_SETPIPE_SZ, n)
}
