package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Class is the closed failure taxonomy every fetcher reports through.
type Class int

const (
	Internal Class = iota
	NotFound
	UpstreamUnavailable
	UpstreamProtocolError
)

func (c Class) String() string {
	switch c {
	case NotFound:
		return "not_found"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case UpstreamProtocolError:
		return "upstream_protocol_error"
	default:
		return "internal"
	}
}

// HTTPStatus maps the class to the status the routing layer responds with.
func (c Class) HTTPStatus() int {
	switch c {
	case NotFound:
		return http.StatusNotFound
	case UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case UpstreamProtocolError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified fetch failure.
type Error struct {
	Class  Class
	Source string
	// Status is the upstream HTTP status, 0 when the upstream never answered.
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Source)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int { return e.Class.HTTPStatus() }

func ErrNotFound(source, format string, args ...any) *Error {
	return &Error{Class: NotFound, Source: source, Detail: fmt.Sprintf(format, args...)}
}

func ErrUnavailable(source string, err error) *Error {
	return &Error{Class: UpstreamUnavailable, Source: source, Detail: "network error fetching price", Err: err}
}

func ErrProtocol(source string, status int, err error) *Error {
	detail := "malformed response"
	if status != 0 {
		detail = fmt.Sprintf("unexpected status %d", status)
	}
	return &Error{Class: UpstreamProtocolError, Source: source, Status: status, Detail: detail, Err: err}
}

func ErrInternal(source string, err error) *Error {
	return &Error{Class: Internal, Source: source, Detail: "unexpected error", Err: err}
}

// Classify turns an arbitrary fetch error into an *Error. Classified errors
// pass through untouched; transport failures become UpstreamUnavailable and
// everything else Internal.
func Classify(source string, err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	if isTransport(err) {
		return ErrUnavailable(source, err)
	}
	return ErrInternal(source, err)
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var de *net.DNSError
	return errors.As(err, &de)
}
