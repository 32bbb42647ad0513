package snippets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charlesng35/livecss/internal/models"
	"github.com/charlesng35/livecss/pkg/validator"
)

// Codec converts snippets to and from the portable single-object JSON document.
type Codec struct {
	now   func() time.Time
	newID func() string
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for fresh timestamps.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides the id source used for fresh identities.
func WithIDGenerator(newID func() string) CodecOption {
	return func(c *Codec) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewCodec constructs a Codec using GenerateID and time.Now unless overridden.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{now: time.Now, newID: GenerateID}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = NewCodec()

// ToPortable encodes snippet with the default codec.
func ToPortable(snippet models.Snippet) ([]byte, error) {
	return defaultCodec.ToPortable(snippet)
}

// FromPortable decodes a portable document with the default codec.
func FromPortable(data []byte) (models.Snippet, error) {
	return defaultCodec.FromPortable(data)
}

// portableSnippet is the import schema. Pointers distinguish an absent field from an empty one.
type portableSnippet struct {
	Title     *string         `json:"title" validate:"required,min=1"`
	HTML      *string         `json:"html" validate:"required"`
	CSS       *string         `json:"css" validate:"required"`
	CreatedAt json.RawMessage `json:"createdAt"`
}

// ToPortable returns snippet as an indented JSON object carrying exactly the six snippet fields.
// Markup is written as-is rather than with \u003c escapes.
func (c *Codec) ToPortable(snippet models.Snippet) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snippet); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// FromPortable parses and validates a portable document. The result always carries a fresh id
// and updatedAt; createdAt is kept when the payload holds a positive number. Any failure is an
// *ImportError.
func (c *Codec) FromPortable(data []byte) (models.Snippet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.Snippet{}, importFailure("empty document")
	}

	var payload portableSnippet
	if err := json.Unmarshal(data, &payload); err != nil {
		return models.Snippet{}, importFailure(describeDecodeError(err))
	}

	if err := validator.ValidateStruct(payload); err != nil {
		return models.Snippet{}, importFailure(describeValidationError(err))
	}

	now := models.Millis(c.now())
	createdAt := now
	if value, ok := positiveMillis(payload.CreatedAt); ok {
		createdAt = value
	}

	return models.Snippet{
		ID:        c.newID(),
		Title:     *payload.Title,
		HTML:      *payload.HTML,
		CSS:       *payload.CSS,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}, nil
}

// Fresh builds a snippet for the given content with a new id and both timestamps set to now.
func (c *Codec) Fresh(title, html, css string) models.Snippet {
	now := models.Millis(c.now())
	return models.Snippet{
		ID:        c.newID(),
		Title:     title,
		HTML:      html,
		CSS:       css,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Now returns the codec clock in Unix milliseconds.
func (c *Codec) Now() int64 {
	return models.Millis(c.now())
}

// NewID returns a fresh id from the codec id source.
func (c *Codec) NewID() string {
	return c.newID()
}

// ExportFilename derives a download filename from a title: characters outside [a-zA-Z0-9]
// become underscores and the result is lower-cased.
func ExportFilename(title string) string {
	if title == "" {
		return "snippet.json"
	}

	var b strings.Builder
	b.Grow(len(title) + len(".json"))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString(".json")
	return b.String()
}

// positiveMillis truncates fractional milliseconds toward zero; a value below one is not positive.
func positiveMillis(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	value = math.Trunc(value)
	if value <= 0 || value > float64(1<<53) {
		return 0, false
	}
	return int64(value), true
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return "expected a JSON object"
		}
		return fmt.Sprintf("field %q must be a string", typeErr.Field)
	}
	return "invalid JSON"
}

func describeValidationError(err error) string {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid snippet"
	}

	reasons := make([]string, 0, len(failures))
	for _, failure := range failures {
		switch failure.Tag {
		case "required":
			reasons = append(reasons, fmt.Sprintf("missing field %q", failure.Field))
		case "min":
			reasons = append(reasons, fmt.Sprintf("field %q must not be empty", failure.Field))
		default:
			reasons = append(reasons, fmt.Sprintf("field %q is invalid", failure.Field))
		}
	}
	return strings.Join(reasons, "; ")
}
