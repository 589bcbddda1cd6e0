// Package fields is the closed registry of chatflow field types. Every place
// that renders, parses or validates a field goes through Lookup so that an
// unrecognised type token fails loudly instead of defaulting to free text.
package fields

import (
	"errors"
	"fmt"
)

type Type string

const (
	Text     Type = "text"
	Email    Type = "email"
	Phone    Type = "phone"
	URL      Type = "url"
	Textarea Type = "textarea"
	Number   Type = "number"
	Date     Type = "date"
	Select   Type = "select"
	Boolean  Type = "boolean"
	File     Type = "file"
)

// Affordance is the conversational input widget a field is answered with.
type Affordance string

const (
	AffordanceFreeText   Affordance = "free_text"
	AffordanceMultiLine  Affordance = "multi_line"
	AffordanceChoices    Affordance = "choices"
	AffordanceDatePicker Affordance = "date_picker"
	AffordanceFilePrompt Affordance = "file_prompt"
)

var ErrUnknownFieldType = errors.New("unknown field type")

type UnknownFieldTypeError struct {
	Type string
}

func (e *UnknownFieldTypeError) Error() string {
	return fmt.Sprintf("unknown field type %q", e.Type)
}

func (e *UnknownFieldTypeError) Is(target error) bool { return target == ErrUnknownFieldType }

// Spec holds the per-type rules.
type Spec struct {
	Type       Type
	Affordance Affordance
	// InputMode is a keyboard hint for free-text affordances ("email", "tel", "url", "decimal").
	InputMode string

	parse   func(s string) error
	display func(s string) string
}

var ordered = []Type{Text, Email, Phone, URL, Textarea, Number, Date, Select, Boolean, File}

var registry = map[Type]Spec{
	Text:     {Type: Text, Affordance: AffordanceFreeText, InputMode: "text"},
	Email:    {Type: Email, Affordance: AffordanceFreeText, InputMode: "email", parse: parseEmail},
	Phone:    {Type: Phone, Affordance: AffordanceFreeText, InputMode: "tel", parse: parsePhone},
	URL:      {Type: URL, Affordance: AffordanceFreeText, InputMode: "url", parse: parseURL},
	Textarea: {Type: Textarea, Affordance: AffordanceMultiLine, InputMode: "text"},
	Number:   {Type: Number, Affordance: AffordanceFreeText, InputMode: "decimal", parse: parseNumber, display: displayNumber},
	Date:     {Type: Date, Affordance: AffordanceDatePicker, parse: parseDate, display: displayDate},
	Select:   {Type: Select, Affordance: AffordanceChoices},
	Boolean:  {Type: Boolean, Affordance: AffordanceChoices, parse: parseBoolean, display: displayBoolean},
	File:     {Type: File, Affordance: AffordanceFilePrompt, display: displayFile},
}

// Types returns the closed enumeration in a stable order.
func Types() []Type {
	out := make([]Type, len(ordered))
	copy(out, ordered)
	return out
}

// TypeNames is Types as plain strings, for prompts and JSON schema enums.
func TypeNames() []string {
	out := make([]string, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, string(t))
	}
	return out
}

func IsKnown(t string) bool {
	_, ok := registry[Type(t)]
	return ok
}

func Lookup(t Type) (Spec, error) {
	spec, ok := registry[t]
	if !ok {
		return Spec{}, &UnknownFieldTypeError{Type: string(t)}
	}
	return spec, nil
}

// Choices returns the buttons offered for a choices affordance.
func Choices(t Type, options []string) ([]string, error) {
	switch t {
	case Select:
		out := make([]string, len(options))
		copy(out, options)
		return out, nil
	case Boolean:
		return []string{"Yes", "No"}, nil
	}
	if _, err := Lookup(t); err != nil {
		return nil, err
	}
	return nil, nil
}
