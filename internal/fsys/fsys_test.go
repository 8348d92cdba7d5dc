package fsys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTreeKeepsExistingFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.yml"), []byte("bundled"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.yml"), []byte("operator"), 0o644))

	copied, err := CopyTree(OS{}, src, dst, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dst, "nested", "b.txt")}, copied)

	data, err := os.ReadFile(filepath.Join(dst, "a.yml"))
	require.NoError(t, err)
	assert.Equal(t, "operator", string(data))

	_, err = CopyTree(OS{}, src, dst, true)
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dst, "a.yml"))
	require.NoError(t, err)
	assert.Equal(t, "bundled", string(data))
}

func TestSamePathAndWithin(t *testing.T) {
	assert.True(t, SamePath(`C:\Program Files\Elastic\`, `c:/program files/elastic`))
	assert.False(t, SamePath(`C:\es`, `C:\es2`))

	assert.True(t, Within(`C:\es`, `C:\ES\config`))
	assert.True(t, Within(`C:\es`, `C:\es`))
	assert.False(t, Within(`C:\es`, `C:\es2\config`))
	assert.False(t, Within(`C:\es`, `C:\es\..\other`))
	assert.False(t, Within("", `C:\es`))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, Exists(OS{}, dir))
	assert.True(t, IsDir(OS{}, dir))
	assert.False(t, Exists(OS{}, filepath.Join(dir, "missing")))
}
