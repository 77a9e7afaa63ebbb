package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const messageTemplate = `{
  "author":"%s",
  "content":"%s",
  "client":"%s",
  "datatype":"%s",
  "secret":"%s"
}`

// Encode renders m in the fixed five-field layout. Only the double quote is
// escaped, and never in the datatype; see Message.Validate for the inputs
// that do not survive a round trip.
func Encode(m Message) string {
	return fmt.Sprintf(messageTemplate,
		escapeQuotes(m.Author),
		escapeQuotes(m.Content),
		escapeQuotes(m.Client),
		m.Datatype,
		escapeQuotes(m.Secret),
	)
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

var wireFields = [...]string{"author", "content", "client", "datatype", "secret"}

// Decode parses one encoded message. Keys must match exactly and appear once.
// Any deviation from the five-field object shape fails with
// ErrMalformedMessage and a zero Message.
func Decode(text string) (Message, error) {
	if !utf8.ValidString(text) {
		return Message{}, fmt.Errorf("%w: invalid utf-8", ErrMalformedMessage)
	}
	dec := json.NewDecoder(strings.NewReader(text))

	tok, err := dec.Token()
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Message{}, fmt.Errorf("%w: expected object", ErrMalformedMessage)
	}

	values := make(map[string]string, len(wireFields))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		key, ok := tok.(string)
		if !ok || !isWireField(key) {
			return Message{}, fmt.Errorf("%w: unknown field %v", ErrMalformedMessage, tok)
		}
		if _, seen := values[key]; seen {
			return Message{}, fmt.Errorf("%w: duplicate field %s", ErrMalformedMessage, key)
		}
		var v *string
		if err := dec.Decode(&v); err != nil {
			return Message{}, fmt.Errorf("%w: field %s: %v", ErrMalformedMessage, key, err)
		}
		if v == nil {
			return Message{}, fmt.Errorf("%w: field %s is null", ErrMalformedMessage, key)
		}
		values[key] = *v
	}
	if _, err := dec.Token(); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Message{}, fmt.Errorf("%w: trailing data after object", ErrMalformedMessage)
	}

	missing := make([]string, 0, len(wireFields))
	for _, name := range wireFields {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Message{}, fmt.Errorf("%w: missing %s", ErrMalformedMessage, strings.Join(missing, ", "))
	}

	return Message{
		Author:   values["author"],
		Content:  values["content"],
		Client:   values["client"],
		Datatype: values["datatype"],
		Secret:   values["secret"],
	}, nil
}

func isWireField(key string) bool {
	for _, name := range wireFields {
		if key == name {
			return true
		}
	}
	return false
}
