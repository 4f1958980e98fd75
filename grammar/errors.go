package grammar

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSchema     = errors.New("invalid schema")
	ErrUnsupportedSchema = errors.New("unsupported schema")
	ErrUnsupportedType   = errors.New("unsupported type")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrUnresolvedRef     = errors.New("unresolved reference")
	ErrExternalRef       = errors.New("external references are not supported")
	ErrRefDepth          = errors.New("reference nesting too deep")
	ErrInvalidWhitespace = errors.New("invalid whitespace pattern")
)

// CompileError reports why a schema could not be compiled. Path is a JSON
// pointer to the offending node, rooted at "#".
type CompileError struct {
	Path string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("grammar: %s: %v", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func errorf(path string, kind error, format string, args ...any) error {
	return &CompileError{
		Path: path,
		Err:  fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}
