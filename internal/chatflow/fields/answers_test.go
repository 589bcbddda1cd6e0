package fields

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		typ     Type
		raw     any
		want    any
		wantErr bool
	}{
		{name: "text_trimmed", typ: Text, raw: "  Jane Doe ", want: "Jane Doe"},
		{name: "email_ok", typ: Email, raw: "jane@x.com", want: "jane@x.com"},
		{name: "email_bad", typ: Email, raw: "jane at x", wantErr: true},
		{name: "email_display_name_rejected", typ: Email, raw: "Jane <jane@x.com>", wantErr: true},
		{name: "phone_ok", typ: Phone, raw: "+1 (555) 123-4567", want: "+1 (555) 123-4567"},
		{name: "phone_short", typ: Phone, raw: "123", wantErr: true},
		{name: "phone_letters", typ: Phone, raw: "555-CALL-NOW", wantErr: true},
		{name: "url_bare_host", typ: URL, raw: "example.com/path", want: "example.com/path"},
		{name: "url_ftp", typ: URL, raw: "ftp://example.com", wantErr: true},
		{name: "number_string", typ: Number, raw: "42.5", want: "42.5"},
		{name: "number_json", typ: Number, raw: float64(3), want: float64(3)},
		{name: "number_bad", typ: Number, raw: "forty", wantErr: true},
		{name: "date_ok", typ: Date, raw: "2024-03-05", want: "2024-03-05"},
		{name: "date_bad", typ: Date, raw: "03/05/2024", wantErr: true},
		{name: "boolean_word", typ: Boolean, raw: "Yes", want: "Yes"},
		{name: "boolean_json", typ: Boolean, raw: true, want: true},
		{name: "boolean_bad", typ: Boolean, raw: "maybe", wantErr: true},
		{name: "select_not_in_options_is_lenient", typ: Select, raw: "Other", want: "Other"},
		{name: "empty_is_skip", typ: Number, raw: "", want: ""},
		{name: "nil_is_skip", typ: Date, raw: nil, want: ""},
		{name: "object_rejected", typ: Text, raw: map[string]any{"a": 1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.typ, tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidAnswer) {
					t.Fatalf("expected ErrInvalidAnswer, got value=%v err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Parse=%#v want %#v", got, tc.want)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	cases := []struct {
		typ  Type
		raw  any
		want string
	}{
		{Date, "2024-03-05", "March 5, 2024"},
		{Date, "2024-03-05T10:00:00Z", "March 5, 2024"},
		{Boolean, "y", "Yes"},
		{Boolean, false, "No"},
		{Number, "007.50", "7.5"},
		{File, "uploads/cf/abc/resume.pdf", "Uploaded: resume.pdf"},
		{Text, "Jane Doe", "Jane Doe"},
		{Select, "Blue", "Blue"},
		{Textarea, "", "(skipped)"},
	}
	for _, tc := range cases {
		got, err := Display(tc.typ, tc.raw)
		if err != nil {
			t.Fatalf("Display(%s, %v): %v", tc.typ, tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("Display(%s, %v)=%q want %q", tc.typ, tc.raw, got, tc.want)
		}
	}
}
