package generation

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/chatflow-backend/internal/chatflow/fields"
	"github.com/yungbote/chatflow-backend/internal/platform/logger"
)

const promptsEnv = "CHATFLOW_PROMPTS_YAML"

//go:embed prompts.yaml
var promptsFS embed.FS

type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type Prompts struct {
	Analyze  Prompt `yaml:"analyze"`
	Generate Prompt `yaml:"generate"`
}

var fallbackPrompts = Prompts{
	Analyze: Prompt{
		System: "You help operators design chat-driven forms. Reply with JSON only.",
		User:   "Form description:\n{{description}}\n\nReturn JSON {\"suggestedName\": string, \"analysis\": string}.",
	},
	Generate: Prompt{
		System: "You design conversational forms. Output JSON only.",
		User:   "Description:\n{{description}}\n\nAnalysis:\n{{analysis}}\n\nReturn {\"fields\":[...]} with 5 to 12 fields of types {{types}}.",
	},
}

var (
	promptsOnce   sync.Once
	loadedPrompts Prompts
)

// LoadPrompts returns the prompt set, preferring the file named by
// CHATFLOW_PROMPTS_YAML, then the embedded yaml, then the built-in fallback.
func LoadPrompts(log *logger.Logger) Prompts {
	promptsOnce.Do(func() {
		p, src, err := readPrompts()
		if err != nil {
			if log != nil {
				log.Warn("chatflow prompts invalid; using fallback", "source", src, "error", err)
			}
			p = fallbackPrompts
		}
		loadedPrompts = p
	})
	return loadedPrompts
}

func readPrompts() (Prompts, string, error) {
	src := "embedded"
	var raw []byte
	var err error
	if path := strings.TrimSpace(os.Getenv(promptsEnv)); path != "" {
		src = path
		raw, err = os.ReadFile(path)
	} else {
		raw, err = promptsFS.ReadFile("prompts.yaml")
	}
	if err != nil {
		return Prompts{}, src, err
	}
	return parsePrompts(raw, src)
}

func parsePrompts(raw []byte, src string) (Prompts, string, error) {
	var p Prompts
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Prompts{}, src, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(p.Analyze.User) == "" || strings.TrimSpace(p.Generate.User) == "" {
		return Prompts{}, src, fmt.Errorf("prompts missing analyze or generate user template")
	}
	return p, src, nil
}

func render(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

func typeList() string {
	names := fields.TypeNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return strings.Join(quoted, ", ")
}
