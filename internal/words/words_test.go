package words

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	pool := Default()
	assert.GreaterOrEqual(t, len(pool), 200)
	for _, w := range pool {
		assert.NotContains(t, w, " ")
		assert.False(t, strings.HasPrefix(w, "#"))
	}
}

func TestParse(t *testing.T) {
	in := "# comment\napple\n\n  Bear \napple\nAPPLE\ncat\n"
	got, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "Bear", "cat"}, got)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got)

	got, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
