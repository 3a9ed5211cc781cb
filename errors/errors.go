package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
)

// DefaultChainDepth bounds cause-chain walks when the caller has no better limit.
const DefaultChainDepth = 32

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("%s %s", caller(2), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s: %w", caller(2), fmt.Sprintf(format, a...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Chain returns err followed by its causes, outermost first. Errors wrapping
// several causes are walked depth first. The walk stops after maxDepth links
// and never visits the same comparable error twice, so cyclic chains end.
func Chain(err error, maxDepth int) []error {
	if err == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultChainDepth
	}

	var (
		out   []error
		seen  = make(map[any]struct{})
		stack = []error{err}
	)
	for len(stack) > 0 && len(out) < maxDepth {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil {
			continue
		}
		if key, ok := identity(cur); ok {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, cur)

		switch u := cur.(type) {
		case interface{ Unwrap() error }:
			stack = append(stack, u.Unwrap())
		case interface{ Unwrap() []error }:
			causes := u.Unwrap()
			for i := len(causes) - 1; i >= 0; i-- {
				stack = append(stack, causes[i])
			}
		}
	}
	return out
}

// Root returns the innermost error reachable from err through Chain.
func Root(err error) error {
	chain := Chain(err, DefaultChainDepth)
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

// identity returns a map key for err when its dynamic type is comparable.
func identity(err error) (any, bool) {
	if !reflect.TypeOf(err).Comparable() {
		return nil, false
	}
	return err, true
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "???"
		line = 0
	} else {
		file = filepath.Base(file)
	}
	return fmt.Sprintf("[%s:%d]", file, line)
}
