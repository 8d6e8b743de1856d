package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/config"
)

func TestLocal_PutDelete(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir, "/uploads/")

	res, err := l.Put(context.Background(), strings.NewReader("proof"), PutInput{Filename: "Receipt.PNG"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Key, ".png"))
	assert.Equal(t, "/uploads/"+res.Key, res.URL)

	b, err := os.ReadFile(filepath.Join(dir, res.Key))
	require.NoError(t, err)
	assert.Equal(t, "proof", string(b))

	require.NoError(t, l.Delete(context.Background(), res.Key))
	_, err = os.Stat(filepath.Join(dir, res.Key))
	assert.True(t, os.IsNotExist(err))
}

func TestAllowedExt(t *testing.T) {
	assert.Equal(t, ".pdf", AllowedExt("a.PDF"))
	assert.Equal(t, "", AllowedExt("run.sh"))
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(context.Background(), config.StorageConfig{Driver: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = FromConfig(context.Background(), config.StorageConfig{Driver: "s3"})
	assert.Error(t, err)

	_, err = FromConfig(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
