//go:build !tinygo

package halt

import "runtime/debug"

func captureStack() []byte {
	return debug.Stack()
}
