package wire

import "fmt"

// ParseError reports a single malformed frame. The connection stays up; the
// error is surfaced as an event and the read loop continues.
type ParseError struct {
	Channel string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Channel, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServerError is an in-band error frame from the venue. It carries no
// connection-state implications.
type ServerError struct {
	Code        string
	Message     string
	OrderbookID string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}
