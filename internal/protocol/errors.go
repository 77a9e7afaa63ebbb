package protocol

import "errors"

var (
	ErrMalformedMessage      = errors.New("protocol: malformed message")
	ErrUnencodable           = errors.New("protocol: message cannot be encoded")
	ErrInvalidText           = errors.New("protocol: invalid utf-8 text")
	ErrMessageTooLarge       = errors.New("protocol: message too large")
	ErrMalformedRegistration = errors.New("protocol: malformed registration")
)
