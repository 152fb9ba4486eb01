package records

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLength is the largest accepted text, counted in code points.
const MaxTextLength = 100

type ValidationKind int

const (
	KindMissing ValidationKind = iota + 1
	KindWrongType
	KindBlank
	KindControlOnly
	KindTooLong
	KindMalformedBody
)

var validationMessages = map[ValidationKind]string{
	KindMissing:       "No text provided.",
	KindWrongType:     "Invalid text format.",
	KindBlank:         "Invalid text format: empty or whitespace-only string.",
	KindControlOnly:   "Invalid text format: control characters only.",
	KindTooLong:       "Text length exceeds maximum allowed.",
	KindMalformedBody: "Invalid JSON body.",
}

// ValidationError rejects a text payload. Its message is returned to clients verbatim.
type ValidationError struct {
	Kind ValidationKind
}

func (e ValidationError) Error() string {
	return validationMessages[e.Kind]
}

// TextPayload is the request body accepted by create and update.
// Text stays raw so that absence, null and non-string values can be told apart.
type TextPayload struct {
	Text json.RawMessage `json:"text"`
}

// DecodeTextPayload parses a request body into a TextPayload.
// Anything other than a JSON object is a malformed body.
func DecodeTextPayload(body []byte) (TextPayload, error) {
	var payload TextPayload
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return payload, ValidationError{Kind: KindMalformedBody}
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return payload, ValidationError{Kind: KindMalformedBody}
	}
	return payload, nil
}

// ValidateText applies the text rules in order; the first failing rule wins.
// The accepted value is returned untrimmed.
func ValidateText(raw json.RawMessage) (string, error) {
	value := bytes.TrimSpace(raw)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return "", ValidationError{Kind: KindMissing}
	}
	// encoding/json would replace invalid UTF-8 with U+FFFD and store something
	// other than what was sent.
	if value[0] != '"' || !utf8.Valid(value) {
		return "", ValidationError{Kind: KindWrongType}
	}

	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return "", ValidationError{Kind: KindWrongType}
	}

	// Control characters are not whitespace, so a string of them passes this check
	// and is caught by the next one.
	if strings.TrimFunc(text, isSpace) == "" {
		return "", ValidationError{Kind: KindBlank}
	}
	if allControl(text) {
		return "", ValidationError{Kind: KindControlOnly}
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ValidationError{Kind: KindTooLong}
	}
	// Postgres text columns cannot hold NUL.
	if strings.ContainsRune(text, 0) {
		return "", ValidationError{Kind: KindWrongType}
	}
	return text, nil
}

// isSpace extends unicode.IsSpace with the ASCII information separators U+001C..U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func allControl(text string) bool {
	for _, r := range text {
		if r >= 32 {
			return false
		}
	}
	return true
}
