package fields

import (
	"errors"
	"testing"
)

func TestLookupCoversClosedSet(t *testing.T) {
	want := map[Type]Affordance{
		Text:     AffordanceFreeText,
		Email:    AffordanceFreeText,
		Phone:    AffordanceFreeText,
		URL:      AffordanceFreeText,
		Textarea: AffordanceMultiLine,
		Number:   AffordanceFreeText,
		Date:     AffordanceDatePicker,
		Select:   AffordanceChoices,
		Boolean:  AffordanceChoices,
		File:     AffordanceFilePrompt,
	}
	if len(Types()) != len(want) {
		t.Fatalf("Types(): got %d entries, want %d", len(Types()), len(want))
	}
	for _, typ := range Types() {
		spec, err := Lookup(typ)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", typ, err)
		}
		if spec.Affordance != want[typ] {
			t.Fatalf("Lookup(%s) affordance=%s want %s", typ, spec.Affordance, want[typ])
		}
	}
}

func TestLookupRejectsUnknownTypes(t *testing.T) {
	for _, token := range []string{"long_text", "", "Text", "dropdown"} {
		_, err := Lookup(Type(token))
		if !errors.Is(err, ErrUnknownFieldType) {
			t.Fatalf("Lookup(%q): expected ErrUnknownFieldType, got %v", token, err)
		}
		var ute *UnknownFieldTypeError
		if !errors.As(err, &ute) || ute.Type != token {
			t.Fatalf("Lookup(%q): expected UnknownFieldTypeError carrying the token, got %v", token, err)
		}
	}
	if _, err := Parse("long_text", "x"); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Parse with unknown type: got %v", err)
	}
	if _, err := Display("long_text", "x"); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Display with unknown type: got %v", err)
	}
}

func TestChoices(t *testing.T) {
	got, err := Choices(Select, []string{"a", "b"})
	if err != nil || len(got) != 2 || got[0] != "a" {
		t.Fatalf("Choices(select)=%v err=%v", got, err)
	}
	got, _ = Choices(Boolean, nil)
	if len(got) != 2 || got[0] != "Yes" || got[1] != "No" {
		t.Fatalf("Choices(boolean)=%v", got)
	}
	got, err = Choices(Text, []string{"ignored"})
	if err != nil || got != nil {
		t.Fatalf("Choices(text)=%v err=%v", got, err)
	}
	if _, err := Choices("radio", nil); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Choices(radio): got %v", err)
	}
}

func TestPaddedTypeTokenIsRejectedEverywhere(t *testing.T) {
	padded := Type(" email ")
	if _, err := Lookup(padded); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Lookup: got %v", err)
	}
	if IsKnown(string(padded)) {
		t.Fatalf("IsKnown accepted a padded token")
	}
	if _, err := Parse(padded, "jane@x.com"); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Parse: got %v", err)
	}
	if _, err := Display(padded, "jane@x.com"); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Display: got %v", err)
	}
	if _, err := Choices(Type(" select"), []string{"a"}); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Choices: got %v", err)
	}
}
