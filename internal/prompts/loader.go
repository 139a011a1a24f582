// Package prompts loads the LLM prompt templates of the agent pipelines.
// Each pipeline has one embedded JSON file mapping prompt names to templates;
// a prompt "x" is paired with its system instruction "x-system".
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Prompt files, one per pipeline.
const (
	TeamFormation  = "team_formation.json"
	ProjectPlanner = "project_planner.json"
)

const systemSuffix = "-system"

//go:embed *.json
var promptFiles embed.FS

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

var placeholder = regexp.MustCompile(`\{\{\.([A-Za-z][A-Za-z0-9]*)\}\}`)

// Get retrieves the template stored under key in file.
func Get(file, key string) (string, error) {
	templates, err := loadFile(file)
	if err != nil {
		return "", err
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return tmpl, nil
}

// MustGet is Get for prompts that ship with the binary; a miss is a build defect.
func MustGet(file, key string) string {
	tmpl, err := Get(file, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Render returns the system instruction and the filled-in user prompt for name.
func Render(file, name string, data map[string]string) (system, user string, err error) {
	system, err = Get(file, name+systemSuffix)
	if err != nil {
		return "", "", err
	}
	tmpl, err := Get(file, name)
	if err != nil {
		return "", "", err
	}
	return system, Format(tmpl, data), nil
}

// MustRender is Render for the embedded pipeline prompts.
func MustRender(file, name string, data map[string]string) (system, user string) {
	system, user, err := Render(file, name, data)
	if err != nil {
		panic(fmt.Sprintf("failed to render prompt: %v", err))
	}
	return system, user
}

// Format replaces {{.Key}} placeholders with values from data in a single pass,
// so placeholder-like text inside values is left alone. Unknown keys are kept.
func Format(template string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := data[key]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct placeholder keys of template in order of appearance.
func Placeholders(template string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// List returns the sorted prompt keys of file.
func List(file string) ([]string, error) {
	templates, err := loadFile(file)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Names returns the sorted names of the renderable prompts in file.
func Names(file string) ([]string, error) {
	keys, err := List(file)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, k := range keys {
		if !strings.HasSuffix(k, systemSuffix) {
			names = append(names, k)
		}
	}
	return names, nil
}

func loadFile(file string) (map[string]string, error) {
	cacheMu.RLock()
	templates, ok := cache[file]
	cacheMu.RUnlock()
	if ok {
		return templates, nil
	}

	data, err := promptFiles.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", file, err)
	}

	cacheMu.Lock()
	cache[file] = templates
	cacheMu.Unlock()
	return templates, nil
}

// ClearCache drops parsed prompt files.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}
