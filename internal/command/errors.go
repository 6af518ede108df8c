package command

import (
	"errors"
	"fmt"
)

// Kind classifies why a command could not be interpreted at all.
// Problems inside clauses never produce a Kind; they are skipped instead.
type Kind uint8

const (
	KindEmptyCommand Kind = iota + 1
	KindUnsupportedVerb
	KindMissingSymbol
	KindInvalidSymbol
)

var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrUnsupportedVerb = errors.New("unsupported command, expected /buy or /sell")
	ErrMissingSymbol   = errors.New("symbol required")
	ErrInvalidSymbol   = errors.New("invalid symbol")
)

func (k Kind) String() string {
	switch k {
	case KindEmptyCommand:
		return "EMPTY_COMMAND"
	case KindUnsupportedVerb:
		return "UNSUPPORTED_VERB"
	case KindMissingSymbol:
		return "MISSING_SYMBOL"
	case KindInvalidSymbol:
		return "INVALID_SYMBOL"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindEmptyCommand:
		return ErrEmptyCommand
	case KindUnsupportedVerb:
		return ErrUnsupportedVerb
	case KindMissingSymbol:
		return ErrMissingSymbol
	case KindInvalidSymbol:
		return ErrInvalidSymbol
	default:
		return nil
	}
}

// ParseError is returned by Parse and Scan.
type ParseError struct {
	Kind  Kind
	Input string // raw command text
	Token string // offending token, empty when the token is absent
}

func (e *ParseError) Error() string {
	msg := "parse failed"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Token != "" {
		return fmt.Sprintf("%s: %q", msg, e.Token)
	}
	return msg
}

// Is lets errors.Is match a ParseError against the package sentinels.
func (e *ParseError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the failure kind from err, or 0 if err is not a ParseError.
func KindOf(err error) Kind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
