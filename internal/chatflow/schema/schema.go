// Package schema defines the chatflow field schema and its validator. The
// validator is the only way an untyped schema document becomes a
// ChatflowSchema.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
)

type Field struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Label       string      `json:"label"`
	Type        fields.Type `json:"type"`
	Required    bool        `json:"required"`
	Placeholder string      `json:"placeholder,omitempty"`
	HelperText  string      `json:"helperText,omitempty"`
	Options     []string    `json:"options,omitempty"`
}

type ChatflowSchema struct {
	Fields []Field `json:"fields"`
}

// IsReady reports whether the schema can accept submissions.
func (s ChatflowSchema) IsReady() bool { return len(s.Fields) > 0 }

func (s ChatflowSchema) JSON() ([]byte, error) {
	if s.Fields == nil {
		s.Fields = []Field{}
	}
	return json.Marshal(s)
}

func (s ChatflowSchema) FieldByName(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// IsEmptyDocument reports whether a stored schema document is the
// "nothing generated yet" placeholder: absent, null, {} or without fields.
func IsEmptyDocument(raw []byte) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return true
	}
	var probe struct {
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe.Fields) == 0
}
