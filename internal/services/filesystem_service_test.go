package services

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-shellshock/internal/device"
	"github.com/deploymenttheory/go-shellshock/internal/types"
)

func newTestFS(t *testing.T, opts Options) *FileSystemService {
	t.Helper()
	g := opts.Geometry
	if g == (types.Geometry{}) {
		g = types.DefaultGeometry()
	}
	fs, err := NewFileSystemService(device.NewMemoryDevice(uint64(g.TotalBlocks)), opts)
	require.NoError(t, err)
	require.NoError(t, fs.Format())
	return fs
}

// requireConsistent fails the test if the volume does not pass Check.
func requireConsistent(t *testing.T, fs *FileSystemService) {
	t.Helper()
	report, err := fs.Check()
	require.NoError(t, err)
	require.True(t, report.OK(), "check problems: %v", report.Problems)
}

func TestFormat_EmptyRoot(t *testing.T) {
	fs := newTestFS(t, Options{})

	names, err := fs.Ls("")
	require.NoError(t, err)
	assert.Equal(t, []string{".", ".."}, names)
	assert.Equal(t, "/", fs.Pwd())

	st, err := fs.Stat(".")
	require.NoError(t, err)
	assert.Equal(t, types.RootInode, st.Inode)
	assert.Equal(t, "DIRECTORY", st.Type)
	assert.Equal(t, uint16(2), st.LinkCount)
	assert.Equal(t, uint32(1), st.Blocks)

	requireConsistent(t, fs)
}

func TestNotFormatted(t *testing.T) {
	fs, err := NewFileSystemService(device.NewMemoryDevice(2048), Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, fs.Mount(), types.ErrNotFormatted)
	_, err = fs.Ls("")
	assert.ErrorIs(t, err, types.ErrNotFormatted)

	require.NoError(t, fs.MountOrFormat())
	_, err = fs.Ls("")
	assert.NoError(t, err)
}

func TestCreate_PatternAndStat(t *testing.T) {
	fs := newTestFS(t, Options{})

	require.NoError(t, fs.Create("file1", 70656))
	st, err := fs.Stat("file1")
	require.NoError(t, err)
	assert.Equal(t, types.InodeID(1), st.Inode)
	assert.Equal(t, "FILE", st.Type)
	assert.Equal(t, uint16(1), st.LinkCount)
	assert.Equal(t, uint64(71168), st.Size)
	assert.Equal(t, uint64(70656), st.Bytes)
	assert.Equal(t, uint32(139), st.Blocks)

	require.NoError(t, fs.Create("small", 25))
	content, err := fs.Cat("small")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJABCDEFGHIJABCDE", string(content))

	assert.ErrorIs(t, fs.Create("small", 1), types.ErrNameExists)
	assert.ErrorIs(t, fs.Create("large_file", 10000000), types.ErrFileTooLarge)

	requireConsistent(t, fs)
}

func TestCreate_RollsBackOnNoSpace(t *testing.T) {
	g := types.DefaultGeometry()
	g.TotalBlocks = 131 + 40
	fs := newTestFS(t, Options{Geometry: g})

	before, err := fs.Usage()
	require.NoError(t, err)

	err = fs.Create("big", 512*60)
	assert.ErrorIs(t, err, types.ErrNoSpace)

	after, err := fs.Usage()
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed create leaves nothing behind")

	_, err = fs.Stat("big")
	assert.ErrorIs(t, err, types.ErrNotFound)
	requireConsistent(t, fs)
}

func TestOpen_CreatesAndRejectsDirectories(t *testing.T) {
	fs := newTestFS(t, Options{})

	h, err := fs.Open("fresh", types.ModeReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 0, h)

	st, err := fs.Stat("fresh")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.Size)

	require.NoError(t, fs.Mkdir("d"))
	_, err = fs.Open("d", types.ModeRead)
	assert.ErrorIs(t, err, types.ErrIsADirectory)

	_, err = fs.Open("missing/file", types.ModeRead)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = fs.Open("fresh", types.OpenMode(7))
	assert.ErrorIs(t, err, types.ErrBadMode)
}

func TestReadWriteLseek(t *testing.T) {
	fs := newTestFS(t, Options{})
	require.NoError(t, fs.Create("f", 10))

	h, err := fs.Open("f", types.ModeReadWrite)
	require.NoError(t, err)

	got, err := fs.Read(h, 4)
	require.NoError(t, err)
	assert.Equal(t, "ABCD", string(got))

	got, err = fs.Read(h, 100)
	require.NoError(t, err)
	assert.Equal(t, "EFGHIJ", string(got), "read clips at end of file")

	got, err = fs.Read(h, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, fs.Lseek(h, 2))
	n, err := fs.Write(h, []byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// writing past the end zero-fills the gap
	require.NoError(t, fs.Lseek(h, 12))
	_, err = fs.Write(h, []byte("z"))
	require.NoError(t, err)

	content, err := fs.Cat("f")
	require.NoError(t, err)
	assert.Equal(t, []byte("ABxyEFGHIJ\x00\x00z"), content)

	assert.ErrorIs(t, fs.Lseek(h, -1), types.ErrInvalidArgument)
	require.NoError(t, fs.Close(h))
	assert.ErrorIs(t, fs.Close(h), types.ErrInvalidHandle)
	_, err = fs.Read(h, 1)
	assert.ErrorIs(t, err, types.ErrInvalidHandle)
}

func TestModeEnforcement(t *testing.T) {
	fs := newTestFS(t, Options{})
	require.NoError(t, fs.Create("f", 4))

	r, err := fs.Open("f", types.ModeRead)
	require.NoError(t, err)
	w, err := fs.Open("f", types.ModeWrite)
	require.NoError(t, err)

	_, err = fs.Write(r, []byte("x"))
	assert.ErrorIs(t, err, types.ErrBadMode)
	_, err = fs.Read(w, 1)
	assert.ErrorIs(t, err, types.ErrBadMode)
}

func TestMultiOpen_IndependentCursors(t *testing.T) {
	fs := newTestFS(t, Options{})
	require.NoError(t, fs.Create("f", 20))

	a, err := fs.Open("f", types.ModeRead)
	require.NoError(t, err)
	b, err := fs.Open("f", types.ModeReadWrite)
	require.NoError(t, err)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	_, err = fs.Read(a, 5)
	require.NoError(t, err)
	_, err = fs.Write(b, []byte("12345"))
	require.NoError(t, err)

	got, err := fs.Read(a, 5)
	require.NoError(t, err)
	assert.Equal(t, "FGHIJ", string(got))

	require.NoError(t, fs.Lseek(a, 0))
	got, err = fs.Read(a, 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(got), "writes through one handle are seen by the other")
}

func TestHandleExhaustion(t *testing.T) {
	fs := newTestFS(t, Options{})
	require.NoError(t, fs.Create("f", 1))

	for i := 0; i < types.DefaultMaxHandles; i++ {
		h, err := fs.Open("f", types.ModeRead)
		require.NoError(t, err)
		require.Equal(t, i, h)
	}

	_, err := fs.Open("f", types.ModeRead)
	assert.ErrorIs(t, err, types.ErrNoHandles)

	// a full pool does not create the file before failing
	_, err = fs.Open("other", types.ModeRead)
	assert.ErrorIs(t, err, types.ErrNoHandles)
	_, err = fs.Stat("other")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = fs.Cat("f")
	assert.ErrorIs(t, err, types.ErrNoHandles)

	require.NoError(t, fs.Close(17))
	h, err := fs.Open("f", types.ModeRead)
	require.NoError(t, err)
	assert.Equal(t, 17, h)
}

func TestInodeExhaustion(t *testing.T) {
	fs := newTestFS(t, Options{})

	for i := 1; i < int(types.DefaultInodeCount); i++ {
		require.NoError(t, fs.Create(fmt.Sprintf("f%d", i), 0), "file %d", i)
	}
	err := fs.Create("one_too_many", 0)
	assert.ErrorIs(t, err, types.ErrNoInodes)
	assert.ErrorIs(t, fs.Mkdir("dir"), types.ErrNoInodes)

	require.NoError(t, fs.Unlink("f100"))
	require.NoError(t, fs.Create("again", 0))
	st, err := fs.Stat("again")
	require.NoError(t, err)
	assert.Equal(t, types.InodeID(100), st.Inode, "the freed inode is reused")

	root, err := fs.Stat("/")
	require.NoError(t, err)
	assert.LessOrEqual(t, root.Blocks, fs.Geometry().MaxFileBlocks()+1)

	requireConsistent(t, fs)
}

func TestLinkUnlink(t *testing.T) {
	fs := newTestFS(t, Options{})
	require.NoError(t, fs.Create("a", 100))
	free, err := fs.Usage()
	require.NoError(t, err)

	require.NoError(t, fs.Link("a", "b"))
	st, err := fs.Stat("b")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), st.LinkCount)

	assert.ErrorIs(t, fs.Link("a", "b"), types.ErrNameExists)
	assert.ErrorIs(t, fs.Link("nope", "c"), types.ErrNotFound)
	require.NoError(t, fs.Mkdir("d"))
	assert.ErrorIs(t, fs.Link("d", "e"), types.ErrIsADirectory)
	assert.ErrorIs(t, fs.Unlink("d"), types.ErrIsADirectory)

	require.NoError(t, fs.Unlink("a"))
	content, err := fs.Cat("b")
	require.NoError(t, err)
	assert.Len(t, content, 100)

	require.NoError(t, fs.Unlink("b"))
	assert.ErrorIs(t, fs.Unlink("b"), types.ErrNotFound)

	after, err := fs.Usage()
	require.NoError(t, err)
	assert.Equal(t, free.FreeBlocks, after.FreeBlocks, "the directory takes the file's block")
	assert.Equal(t, free.FreeInodes, after.FreeInodes)
	requireConsistent(t, fs)
}

func TestUnlink_DeferredReclaim(t *testing.T) {
	fs := newTestFS(t, Options{})
	before, err := fs.Usage()
	require.NoError(t, err)

	require.NoError(t, fs.Create("f", 2000))
	h1, err := fs.Open("f", types.ModeRead)
	require.NoError(t, err)
	h2, err := fs.Open("f", types.ModeRead)
	require.NoError(t, err)

	require.NoError(t, fs.Unlink("f"))
	_, err = fs.Stat("f")
	assert.ErrorIs(t, err, types.ErrNotFound)

	got, err := fs.Read(h1, 10)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJ", string(got), "open descriptors still read the data")

	usage, err := fs.Usage()
	require.NoError(t, err)
	assert.Equal(t, 1, usage.PendingInodes)
	requireConsistent(t, fs)

	require.NoError(t, fs.Close(h1))
	usage, err = fs.Usage()
	require.NoError(t, err)
	assert.Equal(t, 1, usage.PendingInodes)

	require.NoError(t, fs.Close(h2))
	usage, err = fs.Usage()
	require.NoError(t, err)
	assert.Equal(t, 0, usage.PendingInodes)
	assert.Equal(t, before.FreeBlocks, usage.FreeBlocks)
	assert.Equal(t, before.FreeInodes, usage.FreeInodes)
	requireConsistent(t, fs)
}

func TestUnlink_FailPolicy(t *testing.T) {
	fs := newTestFS(t, Options{UnlinkPolicy: device.UnlinkPolicyFail})
	require.NoError(t, fs.Create("f", 10))
	h, err := fs.Open("f", types.ModeRead)
	require.NoError(t, err)

	assert.ErrorIs(t, fs.Unlink("f"), types.ErrFileBusy)

	require.NoError(t, fs.Link("f", "g"))
	require.NoError(t, fs.Unlink("f"), "other names remain, so the file is not busy")

	require.NoError(t, fs.Close(h))
	require.NoError(t, fs.Unlink("g"))
	requireConsistent(t, fs)
}

func TestMkdirRmdirCd(t *testing.T) {
	fs := newTestFS(t, Options{})

	require.NoError(t, fs.Mkdir("dir1"))
	assert.ErrorIs(t, fs.Mkdir("dir1"), types.ErrNameExists)

	root, err := fs.Stat("/")
	require.NoError(t, err)
	assert.Equal(t, uint16(3), root.LinkCount)

	require.NoError(t, fs.Cd("dir1"))
	assert.Equal(t, "/dir1", fs.Pwd())
	require.NoError(t, fs.Mkdir("sub"))
	require.NoError(t, fs.Create("sub/file", 5))

	names, err := fs.Ls("sub")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "file"}, names)

	up, err := fs.Stat("..")
	require.NoError(t, err)
	assert.Equal(t, types.RootInode, up.Inode)

	assert.ErrorIs(t, fs.Rmdir("sub"), types.ErrDirectoryNotEmpty)
	assert.ErrorIs(t, fs.Rmdir("sub/file"), types.ErrNotADirectory)
	assert.ErrorIs(t, fs.Rmdir("."), types.ErrInvalidArgument)
	assert.ErrorIs(t, fs.Rmdir(".."), types.ErrInvalidArgument)
	assert.ErrorIs(t, fs.Rmdir("/"), types.ErrInvalidArgument)
	assert.ErrorIs(t, fs.Cd("sub/file"), types.ErrNotADirectory)
	assert.ErrorIs(t, fs.Rmdir("/dir1"), types.ErrFileBusy)

	require.NoError(t, fs.Cd("sub"))
	assert.Equal(t, "/dir1/sub", fs.Pwd())
	require.NoError(t, fs.Unlink("file"))
	assert.ErrorIs(t, fs.Rmdir("/dir1/sub"), types.ErrFileBusy)

	require.NoError(t, fs.Cd("../.."))
	assert.Equal(t, "/", fs.Pwd())
	require.NoError(t, fs.Rmdir("dir1/sub"))
	require.NoError(t, fs.Rmdir("dir1"))

	root, err = fs.Stat("/")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), root.LinkCount)
	names, err = fs.Ls("")
	require.NoError(t, err)
	assert.Equal(t, []string{".", ".."}, names)
	requireConsistent(t, fs)
}

func TestLargeDirectoryAndFragmentation(t *testing.T) {
	fs := newTestFS(t, Options{})

	for i := 0; i < 118; i++ {
		require.NoError(t, fs.Create(fmt.Sprintf("f%03d", i), 0))
	}
	root, err := fs.Stat(".")
	require.NoError(t, err)
	assert.Equal(t, uint32(8), root.Blocks)

	require.NoError(t, fs.Create("f118", 0))
	require.NoError(t, fs.Create("f119", 0))
	root, err = fs.Stat(".")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), root.Blocks)

	for i := 0; i < 118; i += 2 {
		require.NoError(t, fs.Unlink(fmt.Sprintf("f%03d", i)))
	}
	require.NoError(t, fs.Create("refill", 0))

	names, err := fs.Ls("")
	require.NoError(t, err)
	assert.Equal(t, "refill", names[2], "first hole is reused")
	assert.Len(t, names, 2+120-59+1)
	requireConsistent(t, fs)
}

func TestRemountPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk")
	dev, err := device.CreateImage(path, uint64(types.DefaultTotalBlocks), nil)
	require.NoError(t, err)

	fs, err := NewFileSystemService(dev, Options{})
	require.NoError(t, err)
	require.NoError(t, fs.MountOrFormat())
	require.NoError(t, fs.Mkdir("docs"))
	require.NoError(t, fs.Create("docs/readme", 4097))
	require.NoError(t, fs.Create("gone", 700))

	// an unlinked file left open when the session ends becomes an orphan
	_, err = fs.Open("gone", types.ModeRead)
	require.NoError(t, err)
	require.NoError(t, fs.Unlink("gone"))
	require.NoError(t, dev.Close())

	image, err := device.OpenImage(path, false, nil)
	require.NoError(t, err)
	cached := device.NewCachedDevice(image, 8)
	defer cached.Close()

	fs, err = NewFileSystemService(cached, Options{})
	require.NoError(t, err)
	require.NoError(t, fs.MountOrFormat())

	st, err := fs.Stat("/docs/readme")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), st.Blocks)
	content, err := fs.Cat("docs/readme")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "ABCDEFGHIJ"))

	requireConsistent(t, fs)
	assert.Greater(t, cached.GetStats().Evictions, int64(0))
}

func TestCheck_DetectsCorruption(t *testing.T) {
	fs := newTestFS(t, Options{})
	require.NoError(t, fs.Create("f", 100))

	st, err := fs.Stat("f")
	require.NoError(t, err)
	ino, err := fs.inodes.Get(st.Inode)
	require.NoError(t, err)
	ino.LinkCount = 5
	require.NoError(t, fs.inodes.Put(st.Inode, ino))

	report, err := fs.Check()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Contains(t, report.Problems[0], "link count 5")
}
