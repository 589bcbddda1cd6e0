package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/chatflow/schema"
)

type fakeLLM struct {
	replies []string
	errs    []error
	calls   []string
}

func (f *fakeLLM) GenerateText(ctx context.Context, system string, user string) (string, error) {
	i := len(f.calls)
	f.calls = append(f.calls, user)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", errors.New("no reply scripted")
}

type countingMetrics struct{ steps []string }

func (m *countingMetrics) ObserveFallback(step string) { m.steps = append(m.steps, step) }

const nameAndEmailSchema = "```json\n" + `{"fields":[
  {"id":"f1","name":"fullName","label":"What is your name?","type":"text","required":true},
  {"id":"f2","name":"email","label":"What is your email?","type":"email","required":true}
]}` + "\n```"

func TestRunUsesModelOutput(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"suggestedName":"Contact Details","analysis":"Collects a name and an email."}`,
		nameAndEmailSchema,
	}}
	o := NewOrchestrator(llm, nil, nil)

	res, err := o.Run(context.Background(), "collect name and email")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Name != "Contact Details" || res.AnalyzeFallback || res.GenerateFallback {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Schema.Fields) != 2 || res.Schema.Fields[0].Name != "fullName" || res.Schema.Fields[1].Type != fields.Email {
		t.Fatalf("unexpected schema: %+v", res.Schema)
	}
	if len(llm.calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(llm.calls))
	}
	if !strings.Contains(llm.calls[1], "Collects a name and an email.") {
		t.Fatalf("generate prompt should include the analysis: %q", llm.calls[1])
	}
	if !strings.Contains(llm.calls[1], `"textarea"`) {
		t.Fatalf("generate prompt should list registry types: %q", llm.calls[1])
	}
}

func TestRunFallsBackWhenModelAlwaysFails(t *testing.T) {
	boom := errors.New("service unavailable")
	llm := &fakeLLM{errs: []error{boom, boom}}
	m := &countingMetrics{}
	o := NewOrchestrator(llm, nil, m)

	res, err := o.Run(context.Background(), "collect feedback")
	if err != nil {
		t.Fatalf("fallback run must not fail: %v", err)
	}
	if res.Name == "" || res.Name != UntitledName {
		t.Fatalf("expected fallback name, got %q", res.Name)
	}
	if res.Analysis != "Mock analysis: collect feedback" {
		t.Fatalf("unexpected fallback analysis %q", res.Analysis)
	}
	if !res.Schema.IsReady() {
		t.Fatalf("fallback schema must be non-empty")
	}
	if _, err := schema.Validate(res.Schema); err != nil {
		t.Fatalf("fallback schema must validate: %v", err)
	}
	if !res.AnalyzeFallback || !res.GenerateFallback {
		t.Fatalf("fallback flags not set: %+v", res)
	}
	if len(m.steps) != 2 || m.steps[0] != StepAnalyze || m.steps[1] != StepGenerate {
		t.Fatalf("unexpected fallback metrics: %v", m.steps)
	}
}

func TestRunWithoutModelIsDeterministic(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	a, err := o.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := o.Run(context.Background(), "x")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Name != b.Name || len(a.Schema.Fields) != len(b.Schema.Fields) {
		t.Fatalf("fallback not deterministic: %+v vs %+v", a, b)
	}
	if a.Schema.Fields[0].Type != fields.Text || a.Schema.Fields[1].Type != fields.Select {
		t.Fatalf("unexpected mock schema: %+v", a.Schema)
	}
}

func TestRunMalformedJSONFallsBack(t *testing.T) {
	llm := &fakeLLM{replies: []string{"not json", "```\n{\"fields\": [oops\n```"}}
	res, err := NewOrchestrator(llm, nil, nil).Run(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.AnalyzeFallback || !res.GenerateFallback {
		t.Fatalf("expected both fallbacks: %+v", res)
	}
}

func TestRunNormalizesLegacyAliases(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"suggestedName":"Bio","analysis":"a"}`,
		`{"fields":[
		  {"id":"f1","name":"about_you","label":"Tell us about you","type":"long_text","required":"true"},
		  {"name":"Favourite Colour","label":"Colour","type":"dropdown","options":["Red","Blue"]},
		  {"id":"f1","name":"aboutYou","label":"Again","type":"Text","required":false}
		]}`,
	}}
	res, err := NewOrchestrator(llm, nil, nil).Run(context.Background(), "bio")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := res.Schema.Fields
	if got[0].Type != fields.Textarea || got[0].Name != "aboutYou" || !got[0].Required {
		t.Fatalf("field 0 not normalized: %+v", got[0])
	}
	if got[1].Type != fields.Select || got[1].Name != "favouriteColour" || got[1].ID != "field_2" {
		t.Fatalf("field 1 not normalized: %+v", got[1])
	}
	if got[2].Name != "aboutYou2" || got[2].ID != "f12" || got[2].Type != fields.Text {
		t.Fatalf("field 2 not deduplicated: %+v", got[2])
	}
}

func TestRunValidationFailureIsFatal(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		`{"suggestedName":"Bad","analysis":"a"}`,
		`{"fields":[{"id":"f1","name":"x","label":"X","type":"hologram","required":true}]}`,
	}}
	_, err := NewOrchestrator(llm, nil, nil).Run(context.Background(), "bad")
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if !errors.Is(err, schema.ErrInvalidSchema) || !errors.Is(err, fields.ErrUnknownFieldType) {
		t.Fatalf("unexpected error chain: %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &fakeLLM{errs: []error{context.Canceled, context.Canceled}}
	if _, err := NewOrchestrator(llm, nil, nil).Run(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
		{"```{\"a\":1}```", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := StripCodeFences(tc.in); got != tc.want {
			t.Fatalf("StripCodeFences(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"full_name":     "fullName",
		"Email Address": "emailAddress",
		"fullName":      "fullName",
		"  ":            "",
		"zip-code 2":    "zipCode2",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q)=%q want %q", in, got, want)
		}
	}
}
