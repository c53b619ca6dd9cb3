package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// MaxDocumentBytes caps any JSON document accepted from a client.
	MaxDocumentBytes = 10 * 1000 * 1000
	// MaxIntegerDigits caps the textual length of integer literals so a
	// hostile document cannot force arbitrary-precision parsing work.
	MaxIntegerDigits = 10000
)

// DecodeDocument parses a client JSON document into a string-keyed map.
// Empty input decodes to an empty map. Numbers stay as json.Number so
// integer and float fields keep full precision until field unserialization.
func DecodeDocument(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	if len(raw) > MaxDocumentBytes {
		return nil, ErrInvalidJSON()
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, ErrInvalidJSON()
	}
	// A second value after the document is malformed input.
	if dec.More() {
		return nil, ErrInvalidJSON()
	}
	if err := checkNumberWidths(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func checkNumberWidths(value any) error {
	switch v := value.(type) {
	case json.Number:
		s := v.String()
		if strings.ContainsAny(s, ".eE") {
			return nil
		}
		s = strings.TrimPrefix(s, "-")
		if len(s) > MaxIntegerDigits {
			return ErrInvalidJSON()
		}
	case map[string]any:
		for _, item := range v {
			if err := checkNumberWidths(item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range v {
			if err := checkNumberWidths(item); err != nil {
				return err
			}
		}
	}
	return nil
}
