package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "debug")
	require.NoError(t, err)

	logger.With(logrus.Fields{"user_id": "u-1"}).Infof("zone %s evaluated", "home")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "service.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"user_id":"u-1"`)
	assert.Contains(t, string(data), "zone home evaluated")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(t.TempDir(), "loud")
	assert.Error(t, err)
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Errorf("discarded %d", 1)
	assert.NoError(t, logger.Close())
}
