package logger

import "testing"

func TestSanitizeKVsRedactsAnswersAndHashesSessions(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "true")

	out := sanitizeKVs([]interface{}{
		"chatflow_id", "cf-1",
		"field_value", "jane@x.com",
		"session_id", "abc",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("unexpected length: got=%d want=7", len(out))
	}
	if out[1] != "cf-1" {
		t.Fatalf("chatflow_id should pass through, got=%v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("field_value should be redacted, got=%v", out[3])
	}
	if s, _ := out[5].(string); len(s) != len("hash:")+12 {
		t.Fatalf("session_id should be hashed, got=%v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling key should be kept, got=%v", out[6])
	}
}
