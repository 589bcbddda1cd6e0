package generation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
)

// Model output sometimes uses older or looser type names. They are mapped
// here so nothing downstream sees them.
var typeAliases = map[string]fields.Type{
	"long_text":     fields.Textarea,
	"longtext":      fields.Textarea,
	"paragraph":     fields.Textarea,
	"multiline":     fields.Textarea,
	"string":        fields.Text,
	"short_text":    fields.Text,
	"dropdown":      fields.Select,
	"radio":         fields.Select,
	"choice":        fields.Select,
	"single_select": fields.Select,
	"checkbox":      fields.Boolean,
	"yes_no":        fields.Boolean,
	"bool":          fields.Boolean,
	"phone_number":  fields.Phone,
	"tel":           fields.Phone,
	"integer":       fields.Number,
	"int":           fields.Number,
	"float":         fields.Number,
	"datetime":      fields.Date,
	"upload":        fields.File,
	"website":       fields.URL,
}

// CanonicalType maps a model-emitted type token to a registry token. Unknown
// tokens are returned unchanged so the validator reports them.
func CanonicalType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if fields.IsKnown(t) {
		return t
	}
	if alias, ok := typeAliases[t]; ok {
		return string(alias)
	}
	return strings.TrimSpace(raw)
}

// StripCodeFences removes a surrounding ``` or ```json fence from model output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		lang := strings.TrimSpace(s[:nl])
		if lang == "" || !strings.ContainsAny(lang, "{[\"") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NormalizeDocument rewrites a generated document in place: canonical type
// tokens, camelCase unique names, unique ids and a boolean required flag.
// It returns the number of fields.
func NormalizeDocument(doc any) (int, error) {
	root, ok := doc.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("parse schema: top level is not an object")
	}
	items, ok := root["fields"].([]any)
	if !ok {
		return 0, fmt.Errorf("parse schema: fields is not a list")
	}
	names := map[string]bool{}
	ids := map[string]bool{}
	for i, item := range items {
		f, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := f["type"].(string); ok {
			f["type"] = CanonicalType(t)
		}

		name, _ := f["name"].(string)
		name = SanitizeName(name)
		if name == "" {
			label, _ := f["label"].(string)
			name = SanitizeName(label)
		}
		if name == "" {
			name = "field" + strconv.Itoa(i+1)
		}
		f["name"] = uniqueToken(name, names)

		id, _ := f["id"].(string)
		id = strings.TrimSpace(id)
		if id == "" {
			id = "field_" + strconv.Itoa(i+1)
		}
		f["id"] = uniqueToken(id, ids)

		switch v := f["required"].(type) {
		case bool:
		case string:
			f["required"] = strings.EqualFold(strings.TrimSpace(v), "true")
		default:
			f["required"] = false
		}
	}
	return len(items), nil
}

// SanitizeName converts free text to a camelCase token of letters and digits.
func SanitizeName(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(strings.ToLower(w[:1]) + w[1:])
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return b.String()
}

func uniqueToken(base string, seen map[string]bool) string {
	candidate := base
	for n := 2; seen[candidate]; n++ {
		candidate = base + strconv.Itoa(n)
	}
	seen[candidate] = true
	return candidate
}
