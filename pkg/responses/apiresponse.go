package responses

// APIError is the error contract shared by HTTP handlers and lobby commands.
// StatusCode maps the error onto HTTP; Fatal tells the command router whether
// the offending connection has to be dropped.
type APIError interface {
	Error() string
	StatusCode() int
	Fatal() bool
}

// BadRequestError is a malformed, missing or out of range field.
type BadRequestError struct {
	Msg string
}

func (e BadRequestError) Error() string {
	return e.Msg
}

func (BadRequestError) StatusCode() int {
	return 400
}

func (BadRequestError) Fatal() bool {
	return false
}

// IllegalStateError is a command that is well formed but not allowed right now,
// e.g. a boss command while no run is in progress.
type IllegalStateError struct {
	Msg string
}

func (e IllegalStateError) Error() string {
	return e.Msg
}

func (IllegalStateError) StatusCode() int {
	return 409
}

func (IllegalStateError) Fatal() bool {
	return false
}

// UnauthorizedError covers authentication and authorization failures. Set
// Drop when the identity of the peer can no longer be trusted.
type UnauthorizedError struct {
	Msg  string
	Drop bool
}

func (e UnauthorizedError) Error() string {
	return e.Msg
}

func (UnauthorizedError) StatusCode() int {
	return 401
}

func (e UnauthorizedError) Fatal() bool {
	return e.Drop
}

type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string {
	return e.Msg
}

func (NotFoundError) StatusCode() int {
	return 404
}

func (NotFoundError) Fatal() bool {
	return false
}

// ProtocolError means the peer is not speaking the protocol. Always fatal.
type ProtocolError struct {
	Msg string
}

func (e ProtocolError) Error() string {
	return e.Msg
}

func (ProtocolError) StatusCode() int {
	return 400
}

func (ProtocolError) Fatal() bool {
	return true
}

type InternalServerError struct {
	Msg string
}

func (e InternalServerError) Error() string {
	return e.Msg
}

func (InternalServerError) StatusCode() int {
	return 500
}

func (InternalServerError) Fatal() bool {
	return true
}
