// Package errors vends the application error taxonomy shared by all service
// components, along with its mapping to HTTP response status codes.
package errors

import (
	"errors"
	"net/http"
	"strings"
)

type ErrCode string

const (
	ErrCodeNotFound       ErrCode = "NotFound"
	ErrCodeBadInput       ErrCode = "BadInput"
	ErrCodeOversized      ErrCode = "Oversized"
	ErrCodeRateLimited    ErrCode = "RateLimited"
	ErrCodeServiceFailure ErrCode = "ServiceFailure"
)

type Err struct {
	Code  ErrCode
	msg   string
	cause error
}

func (e *Err) Error() string {
	return e.msg
}

// Trace returns the cause chain associated with the error, one cause per line,
// indented by depth.
func (e *Err) Trace() string {
	b := &strings.Builder{}
	b.WriteString(e.msg)
	depth := 1
	err := errors.Unwrap(e)
	for err != nil {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("\t", depth))
		b.WriteString("Caused by: ")
		b.WriteString(err.Error())
		depth++
		err = errors.Unwrap(err)
	}
	return b.String()
}

func (e *Err) Unwrap() error {
	return e.cause
}

func (e *Err) WithCause(c error) *Err {
	e.cause = c
	return e
}

// prefer NewXxx(msg).WithCause(cause) over a two-arg constructor - the caller
// reads without a docs lookup on what the 2nd arg means
func NewNotFound(m string) *Err {
	return &Err{Code: ErrCodeNotFound, msg: m}
}

func NewBadInput(m string) *Err {
	return &Err{Code: ErrCodeBadInput, msg: m}
}

func NewOversized(m string) *Err {
	return &Err{Code: ErrCodeOversized, msg: m}
}

func NewRateLimited(m string) *Err {
	return &Err{Code: ErrCodeRateLimited, msg: m}
}

func NewServiceFailure(m string) *Err {
	return &Err{Code: ErrCodeServiceFailure, msg: m}
}

// StatusCode returns the HTTP response status code associated with the Err
// value.
func (e *Err) StatusCode() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeBadInput, ErrCodeOversized:
		return http.StatusBadRequest
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
