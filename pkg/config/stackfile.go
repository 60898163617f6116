package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StackFile holds the plain values of a Pulumi.<stack>.yaml config block,
// keyed by their fully qualified names.
type StackFile map[string]string

// LoadStackFile reads a stack settings file. A missing file yields an empty
// StackFile. Secure and structured values are skipped.
func LoadStackFile(path string) (StackFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return StackFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stack file: %w", err)
	}

	var doc struct {
		Config map[string]any `yaml:"config"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	file := make(StackFile, len(doc.Config))
	for key, value := range doc.Config {
		switch v := value.(type) {
		case string:
			file[key] = v
		case bool, int, float64:
			file[key] = fmt.Sprint(v)
		}
	}
	return file, nil
}

// Get resolves key the way the Pulumi program does: keys with a namespace
// as given, others in the project namespace.
func (f StackFile) Get(key string) string {
	if !strings.Contains(key, ":") {
		key = ProjectName + ":" + key
	}
	return f[key]
}
