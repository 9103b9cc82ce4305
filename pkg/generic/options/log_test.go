package options

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
	"testing"
)

func TestLoggingValidate(t *testing.T) {
	l := NewDefaultLoggingConfiguration()
	require.NoError(t, l.Validate())

	l.Format = "xml"
	err := l.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"text"`)

	l = NewDefaultLoggingConfiguration()
	l.Verbosity = MaxLogVerbosity + 1
	assert.Error(t, l.Validate())
}

func TestLoggingFileKeys(t *testing.T) {
	l := NewDefaultLoggingConfiguration()
	data, err := yaml.Marshal(&l)
	require.NoError(t, err)
	assert.Equal(t, "format: text\nverbosity: 2\n", string(data))

	require.NoError(t, yaml.Unmarshal([]byte("format: text\n"), &l))
	assert.EqualValues(t, DefaultLogVerbosity, l.Verbosity)
}
