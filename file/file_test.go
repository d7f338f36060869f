package file

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archiver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathProbes(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	require.NoError(t, CreateDir(empty))
	require.NoError(t, WriteFile(filepath.Join(full, "a.txt"), []byte("a")))

	ok, err := PathExists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsNonEmptyDir(empty)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsNonEmptyDir(full)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsNonEmptyDir(filepath.Join(full, "a.txt"))
	require.NoError(t, err)
	assert.False(t, ok, "a regular file is not a directory")

	assert.Error(t, CreateDir(filepath.Join(full, "a.txt")))
}

func TestCopyDirKeepsModesAndLinks(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "tool"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.Symlink("tool", filepath.Join(src, "bin", "tool-alias")))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyDir(src, dst))

	info, err := os.Stat(filepath.Join(dst, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "bin", "tool-alias"))
	require.NoError(t, err)
	assert.Equal(t, "tool", link)
}

func TestMoveAndSymlinkReplace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	dst := filepath.Join(dir, "sub", "b")
	require.NoError(t, Move(src, dst))
	ok, _ := PathExists(dst)
	assert.True(t, ok)

	link := filepath.Join(dir, "link")
	require.NoError(t, Symlink("sub/b", link))
	require.NoError(t, Symlink("sub", link))
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "sub", target)
}

func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, body := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestExtractTarGzSingleTopLevel(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "zlib-1.3.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"zlib-1.3/configure": "#!/bin/sh\n",
		"zlib-1.3/zlib.h":    "/* header */\n",
	})

	start, err := Extract(archive, filepath.Join(dir, "build"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build", "zlib-1.3"), start)
	data, err := os.ReadFile(filepath.Join(start, "zlib.h"))
	require.NoError(t, err)
	assert.Equal(t, "/* header */\n", string(data))
}

func TestUntarRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{"../escape.txt": "boom"})
	err := Untar(archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestTarGzRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, WriteFile(filepath.Join(src, "a", "b.txt"), []byte("b")))
	archive := filepath.Join(t.TempDir(), "tree.tgz")
	require.NoError(t, TarGz(src, archive))

	out := t.TempDir()
	require.NoError(t, Untar(archive, out))
	data, err := os.ReadFile(filepath.Join(out, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestUnzip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("pkg/setup.py")
	require.NoError(t, err)
	_, err = w.Write([]byte("print('hi')\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	start, err := Extract(archive, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "pkg"), start)
}

func TestExtractTarXz(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "gcc-13.2.0")
	require.NoError(t, WriteFile(filepath.Join(src, "configure"), []byte("#!/bin/sh\n")))
	archive := filepath.Join(dir, "gcc-13.2.0.tar.xz")
	require.NoError(t, archiver.NewTarXz().Archive([]string{src}, archive))

	start, err := Extract(archive, filepath.Join(dir, "build"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build", "gcc-13.2.0"), start)
	assert.FileExists(t, filepath.Join(start, "configure"))
}

func TestExtractUnsupported(t *testing.T) {
	assert.False(t, IsArchive("notes.txt"))
	assert.True(t, IsArchive("Boost_1_83.TAR.BZ2"))
	assert.True(t, IsArchive("gcc-13.2.0.tar.xz"))
	assert.True(t, IsArchive("foo-1.0.txz"))
	assert.True(t, IsArchive("zstd-1.5.tar.zst"))
	_, err := Extract(filepath.Join(t.TempDir(), "notes.txt"), t.TempDir())
	assert.Error(t, err)
}

func TestLooksLikeArchive(t *testing.T) {
	for _, name := range []string{"foo-1.0.tar.Z", "foo-1.0.7z", "foo.rar", "data.gz", "foo-1.0.tar.xz"} {
		assert.True(t, LooksLikeArchive(name), name)
	}
	assert.False(t, IsArchive("foo-1.0.7z"))
	for _, name := range []string{"notes.txt", "fix-build.patch", "setup.py"} {
		assert.False(t, LooksLikeArchive(name), name)
	}
}

func TestVerifyChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0644))

	md5sum, err := FileMD5(path)
	require.NoError(t, err)
	assert.Equal(t, "b1946ac92492d2347c6235b4d2611184", md5sum)
	sha, err := FileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03", sha)

	assert.NoError(t, VerifyChecksum(path, md5sum))
	assert.NoError(t, VerifyChecksum(path, "sha256:"+sha))
	assert.Error(t, VerifyChecksum(path, "b1946ac92492d2347c6235b4d2611185"))
	assert.Error(t, VerifyChecksum(path, "deadbeef"))
	assert.Error(t, VerifyChecksum(path, "sha1:abc"))
}
