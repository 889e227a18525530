package filestore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOpenCreatesDirAndFile checks first open with create on a missing tree.
func TestOpenCreatesDirAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state", "super-mouse-ai")
	fsys := NewOS(dir)

	f, err := fsys.Open("transcripts.json", Flag{Read: true, Write: true, Create: true})
	require.NoError(t, err)
	info, err := f.Stat()
	require.NoError(t, err)
	require.Zero(t, info.Size)
	require.NoError(t, f.Close())

	_, err = os.Stat(filepath.Join(dir, "transcripts.json"))
	require.NoError(t, err)
}

// TestTruncateReplacesContent checks write-truncate followed by a full read.
func TestTruncateReplacesContent(t *testing.T) {
	fsys := NewOS(t.TempDir())

	write := func(body string) {
		f, err := fsys.Open("log.json", Flag{Write: true, Create: true, Truncate: true})
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	write(`[{"text":"a long first transcript"}]`)
	write(`[]`)

	f, err := fsys.Open("log.json", Flag{Read: true})
	require.NoError(t, err)
	defer f.Close()

	info, err := f.Stat()
	require.NoError(t, err)
	require.EqualValues(t, 2, info.Size)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))
}

// TestOpenMissingWithoutCreate checks the not-exist error is preserved.
func TestOpenMissingWithoutCreate(t *testing.T) {
	fsys := NewOS(t.TempDir())

	_, err := fsys.Open("missing.json", Flag{Read: true})
	require.Error(t, err)
	require.True(t, IsNotExist(err))
}

// TestOpenRejectsEscapingNames checks names cannot leave the root.
func TestOpenRejectsEscapingNames(t *testing.T) {
	fsys := NewOS(t.TempDir())

	for _, name := range []string{"", "../outside.json", "/etc/passwd"} {
		_, err := fsys.Open(name, Flag{Read: true})
		require.ErrorIs(t, err, ErrInvalidName, name)
	}
}

// TestMemFSFollowsOpenFlags checks the in-memory FS honours create and truncate.
func TestMemFSFollowsOpenFlags(t *testing.T) {
	fsys := NewMem()

	_, err := fsys.Open("a.json", Flag{Read: true})
	require.True(t, IsNotExist(err))

	f, err := fsys.Open("a.json", Flag{Write: true, Create: true, Truncate: true})
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = fsys.Open("a.json", Flag{Read: true, Write: true, Create: true})
	require.NoError(t, err)
	info, err := f.Stat()
	require.NoError(t, err)
	require.EqualValues(t, 5, info.Size)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	require.NoError(t, f.Close())

	got, ok := fsys.Contents("a.json")
	require.True(t, ok)
	require.Equal(t, "hello", string(got))
}
