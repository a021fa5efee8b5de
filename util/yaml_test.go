package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type yamlSample struct {
	Name     string        `yaml:"name"`
	Interval time.Duration `yaml:"interval"`
	Fields   []string      `yaml:"fields"`
}

func TestUnmarshalYamlString(t *testing.T) {
	var sample yamlSample
	assert.NoError(t, UnmarshalYamlString(`
name: test
interval: 250ms
fields: [app, log]
`, &sample))
	assert.Equal(t, yamlSample{Name: "test", Interval: 250 * time.Millisecond, Fields: []string{"app", "log"}}, sample)

	assert.ErrorContains(t, UnmarshalYamlString("name: test\nunknown: 1\n", &sample), "field unknown not found")

	// empty documents leave output untouched
	assert.NoError(t, UnmarshalYamlString("", &sample))
	assert.Equal(t, "test", sample.Name)
}

func TestUnmarshalYamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yml")
	assert.NoError(t, os.WriteFile(path, []byte("name: file\nfields: [x]\n"), 0o644))

	var sample yamlSample
	assert.NoError(t, UnmarshalYamlFile(path, &sample))
	assert.Equal(t, yamlSample{Name: "file", Fields: []string{"x"}}, sample)

	assert.NoError(t, os.WriteFile(path, []byte("name: [\n"), 0o644))
	assert.ErrorContains(t, UnmarshalYamlFile(path, &sample), path+": ")

	assert.Error(t, UnmarshalYamlFile(filepath.Join(t.TempDir(), "missing.yml"), &sample))
}
