package templating

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/template"

	"github.com/google/uuid"
)

// Engine parses request templates and serves their helper functions.
type Engine struct {
	fileCache map[string][]string
	mu        sync.RWMutex
	funcMap   template.FuncMap
}

// Data is passed to every template execution.
type Data struct {
	VU        int
	Iteration uint64
	UUID      string
}

// NewEngine initializes the engine and its functions
func NewEngine() *Engine {
	e := &Engine{
		fileCache: make(map[string][]string),
	}

	e.funcMap = template.FuncMap{
		"randomInt":    e.randomInt,
		"randomUUID":   e.randomUUID,
		"randomChoice": e.randomChoice,
		"randomLine":   e.randomLine,
	}

	return e
}

// Preprocess converts simple variables {{vu}} to Go template syntax {{.VU}}
func (e *Engine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{vu}}", "{{.VU}}")
	s = strings.ReplaceAll(s, "{{iteration}}", "{{.Iteration}}")
	s = strings.ReplaceAll(s, "{{uuid}}", "{{.UUID}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.UUID}}")
	return s
}

// Text is a compiled template, or a plain string when it has no actions.
type Text struct {
	raw  string
	tmpl *template.Template
}

// Compile parses text. Strings without "{{" skip the template machinery.
func (e *Engine) Compile(name, text string) (*Text, error) {
	if !strings.Contains(text, "{{") {
		return &Text{raw: text}, nil
	}
	t, err := template.New(name).Funcs(e.funcMap).Parse(e.Preprocess(text))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return &Text{raw: text, tmpl: t}, nil
}

// Static reports whether Render always returns the same string.
func (t *Text) Static() bool {
	return t.tmpl == nil
}

func (t *Text) Raw() string {
	return t.raw
}

// Render executes the template with data
func (t *Text) Render(data Data) (string, error) {
	if t.tmpl == nil {
		return t.raw, nil
	}
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NewData fills the per-iteration template inputs.
func NewData(vu int, iteration uint64) Data {
	return Data{VU: vu, Iteration: iteration, UUID: uuid.New().String()}
}

// --- Functions ---

func (e *Engine) randomInt(min, max int) int {
	if max <= min {
		return min
	}
	return rand.Intn(max-min) + min
}

func (e *Engine) randomUUID() string {
	return uuid.New().String()
}

func (e *Engine) randomChoice(choices ...string) string {
	if len(choices) == 0 {
		return ""
	}
	return choices[rand.Intn(len(choices))]
}

func (e *Engine) randomLine(filename string) (string, error) {
	e.mu.RLock()
	lines, ok := e.fileCache[filename]
	e.mu.RUnlock()

	if !ok {
		var err error
		if lines, err = e.loadLines(filename); err != nil {
			return "", err
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[rand.Intn(len(lines))], nil
}

func (e *Engine) loadLines(filename string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if lines, ok := e.fileCache[filename]; ok {
		return lines, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", filename, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	var loaded []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			loaded = append(loaded, line)
		}
	}

	e.fileCache[filename] = loaded
	return loaded, nil
}
