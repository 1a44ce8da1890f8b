package parser

import (
	"errors"
	"fmt"
)

// Kinds of parse failure; match with errors.Is.
var (
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrMalformed         = errors.New("malformed link")
)

// ParseError is returned for any link that does not produce a node.
type ParseError struct {
	Scheme string
	Kind   error // ErrUnsupportedScheme or ErrMalformed
	Err    error
}

func (e *ParseError) Error() string {
	scheme := e.Scheme
	if scheme == "" {
		scheme = "<none>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", scheme, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", scheme, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func malformed(scheme string, err error) *ParseError {
	return &ParseError{Scheme: scheme, Kind: ErrMalformed, Err: err}
}
