package edziennik

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrInvalidCredentials is returned when the portal rejects the login or
	// keeps asking for it after a renewal.
	ErrInvalidCredentials = errors.New("edziennik: invalid credentials")
	// ErrParse means a page no longer has the structure the extractor expects.
	ErrParse   = errors.New("edziennik: unexpected page structure")
	ErrNetwork = errors.New("edziennik: network error")
	ErrTimeout = errors.New("edziennik: request timed out")
)

// ParseError names the element that could not be found.
type ParseError struct {
	Element string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrParse.Error(), e.Element)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func parseError(format string, args ...any) error {
	return &ParseError{Element: fmt.Sprintf(format, args...)}
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
