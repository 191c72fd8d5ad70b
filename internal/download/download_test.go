package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glabrego/prismwalls/internal/pexels"
	"github.com/glabrego/prismwalls/internal/settings"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

type fakeOpener struct {
	requested []string
	body      string
	err       error
	failRead  bool
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func (f *fakeOpener) OpenImage(_ context.Context, rawURL string) (io.ReadCloser, error) {
	f.requested = append(f.requested, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	if f.failRead {
		return io.NopCloser(failingReader{}), nil
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

var fixedNow = time.UnixMilli(1700000000123)

func testViewModel() wallpaper.ViewModel {
	return wallpaper.ViewModel{
		ID:      "42",
		FullURL: "https://img/42/large2x",
		Src: pexels.Src{
			Original: "https://img/42/original",
			Large2x:  "https://img/42/large2x",
			Large:    "https://img/42/large",
		},
	}
}

func newDownloader(t *testing.T, opener Opener) (*Downloader, string, string) {
	t.Helper()
	root := t.TempDir()
	gallery := filepath.Join(root, "gallery")
	cache := filepath.Join(root, "cache")
	d := New(opener, Options{GalleryDir: gallery, CacheDir: cache, Now: func() time.Time { return fixedNow }})
	return d, gallery, cache
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "wallpaper_42_hq_1700000000123.jpg", FileName("42", true, fixedNow))
	assert.Equal(t, "wallpaper_42_std_1700000000123.jpg", FileName("42", false, fixedNow))
}

func TestDownload_HighQualityToGallery(t *testing.T) {
	opener := &fakeOpener{body: "pixels"}
	d, gallery, _ := newDownloader(t, opener)

	path, err := d.Download(context.Background(), testViewModel(), settings.Defaults())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(gallery, "wallpaper_42_hq_1700000000123.jpg"), path)
	assert.Equal(t, []string{"https://img/42/original"}, opener.requested)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
}

func TestDownload_StandardQualityToCache(t *testing.T) {
	opener := &fakeOpener{body: "pixels"}
	d, _, cache := newDownloader(t, opener)

	path, err := d.Download(context.Background(), testViewModel(), settings.Preferences{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cache, "wallpaper_42_std_1700000000123.jpg"), path)
	assert.Equal(t, []string{"https://img/42/large"}, opener.requested)
}

func TestDownload_FailureLeavesNoPartialFile(t *testing.T) {
	d, gallery, _ := newDownloader(t, &fakeOpener{failRead: true})

	_, err := d.Download(context.Background(), testViewModel(), settings.Defaults())
	require.Error(t, err)

	entries, err := os.ReadDir(gallery)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_PropagatesClientError(t *testing.T) {
	notFound := &pexels.Error{Kind: pexels.KindNotFound, Status: 404, Message: "Resource not found."}
	d, _, _ := newDownloader(t, &fakeOpener{err: notFound})

	_, err := d.Download(context.Background(), testViewModel(), settings.Defaults())
	require.Error(t, err)
	assert.True(t, pexels.IsNotFound(err))
}

func TestDownload_Validation(t *testing.T) {
	d, _, _ := newDownloader(t, &fakeOpener{})

	_, err := d.Download(context.Background(), wallpaper.ViewModel{}, settings.Defaults())
	assert.Error(t, err)

	_, err = d.Download(context.Background(), wallpaper.ViewModel{ID: "1"}, settings.Defaults())
	assert.Error(t, err)

	noDirs := New(&fakeOpener{}, Options{})
	_, err = noDirs.Download(context.Background(), testViewModel(), settings.Defaults())
	assert.Error(t, err)
}

func TestDownload_RejectsIDsThatLeaveTheDirectory(t *testing.T) {
	d, gallery, _ := newDownloader(t, &fakeOpener{})
	parent := filepath.Dir(gallery)

	for _, id := range []string{"../../../escaped", "../x", "5/../../6"} {
		vm := testViewModel()
		vm.ID = id
		_, err := d.Download(context.Background(), vm, settings.Defaults())
		require.Error(t, err, id)
	}

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "escaped")
		assert.NotContains(t, e.Name(), "wallpaper_")
	}
}
