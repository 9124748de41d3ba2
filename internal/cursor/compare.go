// Package cursor implements the watermark bookkeeping for incremental sync:
// comparing opaque boundary tokens, merging candidate watermarks into the
// store without ever regressing a window, and the full cursor reset.
package cursor

import (
	"math"
	"strconv"
	"strings"
)

// Compare orders two cursor tokens. When both parse as finite numbers the
// comparison is numeric, because the remote sometimes issues plain numeric
// cursors of varying digit counts ("9" must sort below "10"). Otherwise both
// are compared lexicographically as raw strings.
//
// Mixed inputs (one numeric, one not) fall back to the lexicographic path,
// which can order a numeric token counter-intuitively against a structured
// one. That matches the remote's observed token behavior; see the mixed-mode
// cases in the comparator tests.
func Compare(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil && !math.IsNaN(af) && !math.IsNaN(bf) {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
