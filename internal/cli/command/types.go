package command

import (
	"fmt"
	"os"
	"strings"
)

// FieldType describes input type.
type FieldType int

const (
	FieldString FieldType = iota
	FieldFile
)

// fileMarker stands in for a value that will be read from the matching file field.
const fileMarker = "_file_"

// Field defines a CLI input field.
type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Type     FieldType
	Required bool
	// JSONName is the body or query key. Defaults to Name.
	JSONName string
	// FromFile names the field whose file content may stand in for this one.
	FromFile string
	// Session names the session value used when the field is empty.
	Session string
}

func (f Field) key() string {
	if f.JSONName != "" {
		return f.JSONName
	}
	return f.Name
}

// Command defines a CLI command binding.
type Command struct {
	Service string
	Action  string
	Method  string
	Path    string
	Fields  []Field
}

// RequestSpec is the built HTTP request.
type RequestSpec struct {
	Method string
	Path   string
	Body   []byte
}

// Params holds parsed input params.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

func (p Params) Canonicalize(fields []Field) {
	for _, field := range fields {
		for _, alias := range field.Aliases {
			aliasKey := strings.ToLower(alias)
			if value, ok := p[aliasKey]; ok {
				p[strings.ToLower(field.Name)] = value
				delete(p, aliasKey)
			}
		}
	}
}

// ApplyShortcuts marks fields whose file counterpart was given so they are not prompted for.
func (p Params) ApplyShortcuts(fields []Field) {
	for _, field := range fields {
		if field.FromFile == "" {
			continue
		}
		if p.Get(field.FromFile) != "" && p.Get(field.Name) == "" {
			p.Set(field.Name, fileMarker)
		}
	}
}

// Missing returns the required fields that still have no value.
func (p Params) Missing(fields []Field) []Field {
	var missing []Field
	for _, field := range fields {
		if !field.Required {
			continue
		}
		if p.Get(field.Name) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}

// FillFromSession sets empty fields from the session values they name.
func (p Params) FillFromSession(fields []Field, session map[string]string) {
	for _, field := range fields {
		if field.Session == "" || p.Get(field.Name) != "" {
			continue
		}
		if value := session[field.Session]; value != "" {
			p.Set(field.Name, value)
		}
	}
}
