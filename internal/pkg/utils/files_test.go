package utils

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestFileExists(t *testing.T) {
	appFS := afero.NewMemMapFs()

	afero.WriteFile(appFS, "src/a", []byte("file"), 0644)

	assert.True(t, FileExists(appFS, "src/a"))
	assert.False(t, FileExists(appFS, "src/b"))
	assert.False(t, FileExists(appFS, "src"))
}
