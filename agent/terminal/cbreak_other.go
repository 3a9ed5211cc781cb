//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package terminal

import "golang.org/x/term"

func enterCbreak(fd int) (*term.State, error) {
	return term.MakeRaw(fd)
}
