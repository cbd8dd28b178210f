package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderStartsWithBOM(t *testing.T) {
	exporter := NewCSVExporter()

	content, err := exporter.Render(Dataset{
		Headers: []string{"Nome", "Turma"},
		Rows:    []map[string]string{{"Nome": "João", "Turma": "3A"}},
	})
	require.NoError(t, err)

	body := string(content)
	assert.True(t, strings.HasPrefix(body, "\uFEFF"), "missing UTF-8 BOM prefix")
	assert.Contains(t, body, "Nome,Turma")
	assert.Contains(t, body, "João,3A")
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Dataset{})
	assert.Error(t, err)
}
