package mcp

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout       = errors.New("mcp server response timeout")
	ErrStreamClosed  = errors.New("mcp server closed the stream")
	ErrSessionClosed = errors.New("mcp session already closed")
)

// ConfigurationError is returned before any subprocess is started.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func NewMissingTokenError() *ConfigurationError {
	return &ConfigurationError{
		Key:     "NOTION_TOKEN",
		Message: "environment variable not set",
	}
}

// TransportError covers everything between this process and the child:
// spawning it, writing to it and waiting on it.
type TransportError struct {
	Op     string
	Err    error
	Stderr string
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
	if e.Stderr != "" {
		msg += "\nserver stderr:\n" + e.Stderr
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the server answered, but not with a usable result.
// Message is the server's own text, unmodified.
type ProtocolError struct {
	Method  string
	Code    int64
	Message string
	Data    []byte
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("protocol: %s: %s (code %d)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("protocol: %s: %s", e.Method, e.Message)
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}
