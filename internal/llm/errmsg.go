package llm

import "encoding/json"

// wireError is the JSON error envelope both providers emit:
// {"error":{"message":"...","code":429}}. The inner message can itself be
// such a document.
type wireError struct {
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ExtractErrorMessage flattens a provider error into one human-readable
// string. The error's message may be a JSON envelope, nested at most one
// level; anything that does not parse, or parses without an error.message,
// passes through unchanged. Unwrapping is fixed at two levels — that matches
// the providers handled today and bounds the parsing of hostile input.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	raw := err.Error()

	outer, ok := unwrapEnvelope(raw)
	if !ok {
		return raw
	}
	if inner, ok := unwrapEnvelope(outer); ok {
		return inner
	}
	return outer
}

// unwrapEnvelope attempts one level of structured parse, falling back to
// "not an envelope" instead of surfacing a parse error.
func unwrapEnvelope(raw string) (string, bool) {
	var w wireError
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return "", false
	}
	if w.Error == nil || w.Error.Message == "" {
		return "", false
	}
	return w.Error.Message, true
}
