package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
)

//go:embed chatflow_schema.json
var structuralSchema []byte

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error

	namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

var ErrInvalidSchema = errors.New("invalid chatflow schema")

const (
	RuleStructure        = "structure"
	RuleUnknownFieldType = "unknown_field_type"
	RuleNameFormat       = "name_format"
	RuleDuplicateName    = "duplicate_name"
	RuleDuplicateID      = "duplicate_id"
)

// Issue is one violated rule. Index is the position in fields, or -1 for
// document-level problems.
type Issue struct {
	Index   int    `json:"index"`
	FieldID string `json:"field_id,omitempty"`
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`

	err error
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrInvalidSchema.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Path+": "+is.Message)
	}
	return ErrInvalidSchema.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSchema }

// Unwrap exposes per-issue causes so errors.Is(err, fields.ErrUnknownFieldType) works.
func (e *ValidationError) Unwrap() []error {
	var out []error
	for _, is := range e.Issues {
		if is.err != nil {
			out = append(out, is.err)
		}
	}
	return out
}

func compiledSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(structuralSchema))
	})
	return compiled, compileErr
}

// Validate checks an arbitrary JSON-like value and returns the typed schema or
// a *ValidationError listing every offending field.
func Validate(doc any) (ChatflowSchema, error) {
	var raw []byte
	switch v := doc.(type) {
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case ChatflowSchema:
		b, err := v.JSON()
		if err != nil {
			return ChatflowSchema{}, err
		}
		raw = b
	default:
		b, err := json.Marshal(doc)
		if err != nil {
			return ChatflowSchema{}, &ValidationError{Issues: []Issue{{
				Index: -1, Path: "(root)", Rule: RuleStructure, Message: "not a JSON value: " + err.Error(),
			}}}
		}
		raw = b
	}
	return ValidateJSON(raw)
}

func ValidateJSON(raw []byte) (ChatflowSchema, error) {
	sch, err := compiledSchema()
	if err != nil {
		return ChatflowSchema{}, fmt.Errorf("compile chatflow schema: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ChatflowSchema{}, &ValidationError{Issues: []Issue{{
			Index: -1, Path: "(root)", Rule: RuleStructure, Message: "malformed JSON: " + err.Error(),
		}}}
	}

	result, err := sch.Validate(gojsonschema.NewGoLoader(generic))
	if err != nil {
		return ChatflowSchema{}, fmt.Errorf("validate chatflow schema: %w", err)
	}

	issues := make([]Issue, 0)
	for _, re := range result.Errors() {
		issues = append(issues, Issue{
			Index:   indexFromPath(re.Field()),
			Path:    re.Field(),
			Rule:    RuleStructure,
			Message: re.Description(),
		})
	}
	issues = append(issues, ruleIssues(generic)...)

	if len(issues) > 0 {
		sort.SliceStable(issues, func(i, j int) bool { return issues[i].Index < issues[j].Index })
		return ChatflowSchema{}, &ValidationError{Issues: issues}
	}

	var out ChatflowSchema
	if err := json.Unmarshal(raw, &out); err != nil {
		return ChatflowSchema{}, &ValidationError{Issues: []Issue{{
			Index: -1, Path: "(root)", Rule: RuleStructure, Message: err.Error(),
		}}}
	}
	return normalize(out), nil
}

// ruleIssues runs the registry and uniqueness rules on the generic document so
// they are reported alongside structural problems.
func ruleIssues(generic any) []Issue {
	root, ok := generic.(map[string]any)
	if !ok {
		return nil
	}
	items, ok := root["fields"].([]any)
	if !ok {
		return nil
	}
	var out []Issue
	seenNames := map[string]int{}
	seenIDs := map[string]int{}
	for i, item := range items {
		f, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := f["id"].(string)
		path := "fields." + strconv.Itoa(i)

		if typ, ok := f["type"].(string); ok && !fields.IsKnown(typ) {
			out = append(out, Issue{
				Index: i, FieldID: id, Path: path + ".type", Rule: RuleUnknownFieldType,
				Message: fmt.Sprintf("type %q is not a supported field type", typ),
				err:     &fields.UnknownFieldTypeError{Type: typ},
			})
		}
		if name, ok := f["name"].(string); ok && name != "" {
			if !namePattern.MatchString(name) {
				out = append(out, Issue{
					Index: i, FieldID: id, Path: path + ".name", Rule: RuleNameFormat,
					Message: fmt.Sprintf("name %q must contain only letters, digits and underscores", name),
				})
			}
			if prev, dup := seenNames[name]; dup {
				out = append(out, Issue{
					Index: i, FieldID: id, Path: path + ".name", Rule: RuleDuplicateName,
					Message: fmt.Sprintf("name %q already used by fields.%d", name, prev),
				})
			} else {
				seenNames[name] = i
			}
		}
		if id != "" {
			if prev, dup := seenIDs[id]; dup {
				out = append(out, Issue{
					Index: i, FieldID: id, Path: path + ".id", Rule: RuleDuplicateID,
					Message: fmt.Sprintf("id %q already used by fields.%d", id, prev),
				})
			} else {
				seenIDs[id] = i
			}
		}
	}
	return out
}

func indexFromPath(p string) int {
	parts := strings.Split(p, ".")
	if len(parts) < 2 || parts[0] != "fields" {
		return -1
	}
	i, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	return i
}

func normalize(s ChatflowSchema) ChatflowSchema {
	if s.Fields == nil {
		s.Fields = []Field{}
	}
	for i := range s.Fields {
		if len(s.Fields[i].Options) == 0 {
			s.Fields[i].Options = nil
		}
	}
	return s
}
