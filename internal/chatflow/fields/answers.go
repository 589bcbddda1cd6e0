package fields

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidAnswer = errors.New("invalid answer")

type InvalidAnswerError struct {
	Type   Type
	Reason string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid %s answer: %s", e.Type, e.Reason)
}

func (e *InvalidAnswerError) Is(target error) bool { return target == ErrInvalidAnswer }

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// Parse checks a raw answer against the type's input rules. The returned value
// is what gets stored: the answer in its original machine form (strings are
// trimmed). Empty answers are accepted for every type.
func Parse(t Type, raw any) (any, error) {
	spec, err := Lookup(t)
	if err != nil {
		return nil, err
	}
	s, value, err := scalar(spec.Type, raw)
	if err != nil {
		return nil, err
	}
	if s == "" || spec.parse == nil {
		return value, nil
	}
	if err := spec.parse(s); err != nil {
		return nil, err
	}
	return value, nil
}

// Display renders the raw answer for the chat transcript.
func Display(t Type, raw any) (string, error) {
	spec, err := Lookup(t)
	if err != nil {
		return "", err
	}
	s, _, err := scalar(spec.Type, raw)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "(skipped)", nil
	}
	if spec.display == nil {
		return s, nil
	}
	return spec.display(s), nil
}

func scalar(t Type, raw any) (string, any, error) {
	switch v := raw.(type) {
	case nil:
		return "", "", nil
	case string:
		s := strings.TrimSpace(v)
		return s, s, nil
	case bool:
		return strconv.FormatBool(v), v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), v, nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), v, nil
	case int:
		return strconv.Itoa(v), v, nil
	case int64:
		return strconv.FormatInt(v, 10), v, nil
	default:
		return "", nil, &InvalidAnswerError{Type: t, Reason: fmt.Sprintf("unsupported value %T", raw)}
	}
}

func parseEmail(s string) error {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return &InvalidAnswerError{Type: Email, Reason: "not an email address"}
	}
	return nil
}

func parsePhone(s string) error {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-(). ", r):
		default:
			return &InvalidAnswerError{Type: Phone, Reason: "unexpected character"}
		}
	}
	if digits < 7 || digits > 15 {
		return &InvalidAnswerError{Type: Phone, Reason: "expected 7 to 15 digits"}
	}
	return nil
}

func parseURL(s string) error {
	candidate := s
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.ParseRequestURI(candidate)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") || !strings.Contains(u.Host, ".") {
		return &InvalidAnswerError{Type: URL, Reason: "not a web address"}
	}
	return nil
}

func parseNumber(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return &InvalidAnswerError{Type: Number, Reason: "not a number"}
	}
	return nil
}

func displayNumber(s string) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseDateValue(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseDate(s string) error {
	if _, ok := parseDateValue(s); !ok {
		return &InvalidAnswerError{Type: Date, Reason: "expected YYYY-MM-DD"}
	}
	return nil
}

func displayDate(s string) string {
	ts, ok := parseDateValue(s)
	if !ok {
		return s
	}
	return ts.Format("January 2, 2006")
}

func boolValue(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	}
	return false, false
}

func parseBoolean(s string) error {
	if _, ok := boolValue(s); !ok {
		return &InvalidAnswerError{Type: Boolean, Reason: "expected yes or no"}
	}
	return nil
}

func displayBoolean(s string) string {
	b, ok := boolValue(s)
	switch {
	case !ok:
		return s
	case b:
		return "Yes"
	default:
		return "No"
	}
}

func displayFile(s string) string {
	return "Uploaded: " + path.Base(s)
}
