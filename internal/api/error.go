package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// FieldError is one entry of a validation failure sequence returned by the
// backend.
type FieldError struct {
	Loc  []any  `json:"loc,omitempty"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// Detail is the payload of a normalized Error: either a plain message or a
// sequence of validation failures, never both.
type Detail struct {
	Text   string
	Fields []FieldError
}

// IsValidation reports whether the detail is a validation sequence.
func (d Detail) IsValidation() bool {
	return len(d.Fields) > 0
}

// String flattens the detail to a human-readable message. Validation
// sequences become a comma-joined list of their messages.
func (d Detail) String() string {
	if len(d.Fields) == 0 {
		return d.Text
	}
	msgs := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		msgs[i] = f.Msg
	}
	return strings.Join(msgs, ", ")
}

// Error is the normalized failure for every non-success backend response.
// It always carries the original HTTP status code.
type Error struct {
	Status int
	Detail Detail
}

func (e *Error) Error() string {
	return e.Detail.String()
}

// Unauthorized reports whether the response carried status 401.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// normalizeError builds the normalized Error from a non-success response
// body. A body that does not parse yields a synthesized status-line
// message; a parsed body contributes its "detail" field when present, or
// the whole payload otherwise.
func normalizeError(status int, body []byte) *Error {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return &Error{Status: status, Detail: Detail{Text: statusFallback(status)}}
	}

	payload := raw
	if obj, ok := raw.(map[string]any); ok {
		if d, ok := obj["detail"]; ok {
			payload = d
		}
	}

	return &Error{Status: status, Detail: detailFrom(payload)}
}

func detailFrom(payload any) Detail {
	switch v := payload.(type) {
	case string:
		return Detail{Text: v}
	case []any:
		if fields, ok := fieldErrors(v); ok {
			return Detail{Fields: fields}
		}
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return Detail{Text: "unparseable error detail"}
	}
	return Detail{Text: string(serialized)}
}

// fieldErrors converts a parsed sequence into validation entries. Every
// element must carry at least msg and type.
func fieldErrors(items []any) ([]FieldError, bool) {
	if len(items) == 0 {
		return nil, false
	}

	fields := make([]FieldError, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		msg, msgOK := obj["msg"].(string)
		typ, typOK := obj["type"].(string)
		if !msgOK || !typOK {
			return nil, false
		}
		fe := FieldError{Msg: msg, Type: typ}
		if loc, ok := obj["loc"].([]any); ok {
			fe.Loc = loc
		}
		fields = append(fields, fe)
	}
	return fields, true
}

func statusFallback(status int) string {
	reason := http.StatusText(status)
	if reason == "" {
		reason = "Unknown error"
	}
	return fmt.Sprintf("HTTP error %d: %s", status, reason)
}
