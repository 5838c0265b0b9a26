// Package checkpoint decorates errors with the file and line they passed through,
// which results in something similar to a stacktrace when printed.
// Both the decorating error and the wrapped cause stay reachable through errors.Is and errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From marks the caller location on err.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil {
		return nil
	}

	// io.EOF and io.ErrUnexpectedEOF are compared by identity by many readers.
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap marks the caller location on cause and attaches kind, which describes
// what went wrong at this point. Usually kind is a predefined sentinel error:
//  var ErrSomethingSpecialWentWrong = errors.New("a very bad error")
//
//  func someFunction() error {
//  	err := somethingThatFails()
//  	return checkpoint.Wrap(err, ErrSomethingSpecialWentWrong)
//  }
// errors.Is(err, ErrSomethingSpecialWentWrong) then reports true, and so does
// errors.Is for whatever somethingThatFails returned.
//
// Wrap returns nil if cause is nil, so it can wrap unconditionally.
// A nil kind just adds the location.
func Wrap(cause, kind error) error {
	if cause == nil {
		return nil
	}

	if cause == io.EOF {
		return io.EOF
	}

	return newCheckpoint(cause, kind)
}

type checkpoint struct {
	kind  error
	cause error

	file string
	line int
}

func newCheckpoint(cause, kind error) *checkpoint {
	c := &checkpoint{
		kind:  kind,
		cause: cause,
	}

	// Skip newCheckpoint and the exported function.
	if _, file, line, ok := runtime.Caller(2); ok {
		c.file = filepath.Base(file)
		c.line = line
	}

	return c
}

func (c *checkpoint) location() string {
	if c.file == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString("File: ")
	b.WriteString(c.location())
	if c.kind != nil {
		b.WriteString("\n\t")
		b.WriteString(c.kind.Error())
	}
	b.WriteString("\n")

	if _, ok := c.cause.(*checkpoint); ok {
		b.WriteString(c.cause.Error())
	} else {
		b.WriteString("File: unknown\n\t")
		b.WriteString(strings.ReplaceAll(c.cause.Error(), "\n", "\n\t"))
	}

	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.cause
}

func (c *checkpoint) Is(target error) bool {
	return c.kind != nil && errors.Is(c.kind, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.kind != nil && errors.As(c.kind, target)
}
