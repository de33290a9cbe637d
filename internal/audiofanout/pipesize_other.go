// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

//go:build !linux

package audiofanout

import "os"

// setPipeSize is a no-op on platforms without F_SETPIPE_SZ (pipe capacity
// tuning is Linux-specific; everywhere else the OS default applies).
func setPipeSize(r *os.File, n int) {}
