// Package wizard collects project settings interactively and renders the
// files `stepscope init` scaffolds.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"stepscope/internal/projectconfig"
	"stepscope/internal/questionnaire"
	"stepscope/internal/template"
)

// ProjectSpec holds all fields collected during the interactive wizard.
type ProjectSpec struct {
	Model             string
	MaxParallel       int
	CacheEnabled      bool
	CacheDir          string
	WithQuestionnaire bool
}

// DefaultProjectSpec returns the settings `stepscope init --defaults` scaffolds
// without prompting.
func DefaultProjectSpec() *ProjectSpec {
	return &ProjectSpec{
		Model:       projectconfig.DefaultModel,
		MaxParallel: projectconfig.DefaultMaxParallel,
		CacheDir:    projectconfig.DefaultCacheDir,
	}
}

const configTemplate = `# stepscope project configuration.
# Flags on the command line always win over values in this file.
eval:
  model: {{ .Model }}
  max_parallel: {{ .MaxParallel }}
cache:
  enabled: {{ .CacheEnabled }}
  dir: {{ .CacheDir }}
`

// RunProjectWizard runs an interactive huh form to collect project settings.
func RunProjectWizard(in io.Reader, out io.Writer) (*ProjectSpec, error) {
	var (
		model          = projectconfig.DefaultModel
		maxParallelRaw = strconv.Itoa(projectconfig.DefaultMaxParallel)
		cacheEnabled   bool
		cacheDir       = projectconfig.DefaultCacheDir
		withQuestions  bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Evaluator model").
				Description("Model id used to evaluate reasoning steps").
				Placeholder(projectconfig.DefaultModel).
				Value(&model).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("model id is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Max parallel requests").
				Description("Concurrent evaluation requests per run").
				Value(&maxParallelRaw).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("enter a positive integer")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Cache evaluator responses?").
				Description("Repeated runs reuse earlier completions").
				Value(&cacheEnabled),
			huh.NewInput().
				Title("Cache directory").
				Value(&cacheDir),
			huh.NewConfirm().
				Title("Scaffold a starter questionnaire file?").
				Description("questions.yaml with the default battery, for customizing").
				Value(&withQuestions),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	maxParallel, err := strconv.Atoi(strings.TrimSpace(maxParallelRaw))
	if err != nil {
		return nil, fmt.Errorf("invalid max parallel value %q: %w", maxParallelRaw, err)
	}

	return &ProjectSpec{
		Model:             strings.TrimSpace(model),
		MaxParallel:       maxParallel,
		CacheEnabled:      cacheEnabled,
		CacheDir:          strings.TrimSpace(cacheDir),
		WithQuestionnaire: withQuestions,
	}, nil
}

// GenerateProjectConfig renders the .stepscope.yaml content for spec.
func GenerateProjectConfig(spec *ProjectSpec) (string, error) {
	out, err := template.Render(configTemplate, spec)
	if err != nil {
		return "", fmt.Errorf("rendering project config: %w", err)
	}
	return out, nil
}

// GenerateQuestionnaire renders a starter questionnaire file carrying the
// default battery.
func GenerateQuestionnaire() (string, error) {
	doc := struct {
		Questions questionnaire.Battery `yaml:"questions"`
	}{Questions: questionnaire.Default()}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("rendering questionnaire: %w", err)
	}
	return "# Custom question battery. Indices must stay contiguous from 1.\n" + string(data), nil
}
