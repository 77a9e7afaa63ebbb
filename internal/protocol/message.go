package protocol

import (
	"fmt"
	"strings"
)

const (
	DatatypeText     = "text"
	DatatypeRegister = "register"
)

// Message is the single record carried by one connection.
type Message struct {
	Author   string
	Content  string
	Client   string
	Datatype string
	Secret   string
}

// NewMessage builds a message from caller values. Escaping is applied at
// encode time, so the fields hold the caller's text unchanged.
func NewMessage(author, content, client, datatype, secret string) Message {
	return Message{
		Author:   author,
		Content:  content,
		Client:   client,
		Datatype: datatype,
		Secret:   secret,
	}
}

// Validate reports whether m survives the quote-only escaping of Encode.
// Backslashes and control characters would change meaning on decode, and a
// double quote in the datatype is never escaped.
func (m Message) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"author", m.Author},
		{"content", m.Content},
		{"client", m.Client},
		{"datatype", m.Datatype},
		{"secret", m.Secret},
	}
	for _, f := range fields {
		if strings.ContainsRune(f.value, '\\') {
			return fmt.Errorf("%w: %s contains a backslash", ErrUnencodable, f.name)
		}
		if strings.ContainsFunc(f.value, isControl) {
			return fmt.Errorf("%w: %s contains a control character", ErrUnencodable, f.name)
		}
	}
	if strings.ContainsRune(m.Datatype, '"') {
		return fmt.Errorf("%w: datatype contains a double quote", ErrUnencodable)
	}
	return nil
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// Registration is the content of a register message: the endpoint's own
// listen address and the datatypes it accepts.
type Registration struct {
	Address         string
	CompatibleTypes string
}

// FormatRegistration renders "<address>|<compatible_types>".
func FormatRegistration(address, compatibleTypes string) string {
	return address + "|" + compatibleTypes
}

// ParseRegistration splits register content on its first pipe.
func ParseRegistration(content string) (Registration, error) {
	address, types, ok := strings.Cut(content, "|")
	if !ok {
		return Registration{}, fmt.Errorf("%w: missing '|' separator", ErrMalformedRegistration)
	}
	if strings.TrimSpace(address) == "" {
		return Registration{}, fmt.Errorf("%w: missing address", ErrMalformedRegistration)
	}
	return Registration{Address: address, CompatibleTypes: types}, nil
}
