package gudid

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/meddevices/pkg/cache"
	"github.com/ajitpratap0/meddevices/pkg/clients"
	"github.com/ajitpratap0/meddevices/pkg/connector/core"
	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/fetch"
	"github.com/ajitpratap0/meddevices/pkg/testutil"
)

func newEnv(t *testing.T) *core.Env {
	cfg := clients.DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	return &core.Env{
		Store:  cache.New(t.TempDir()),
		Client: clients.NewHTTPClient(cfg, testutil.TestLogger(t)),
		Logger: testutil.TestLogger(t),
	}
}

func TestParseRelease(t *testing.T) {
	r, err := ParseRelease("20240301")
	require.NoError(t, err)
	assert.Equal(t, Release("20240301"), r)

	for _, bad := range []string{"", "202403", "2024-03-01", "20241301"} {
		_, err := ParseRelease(bad)
		assert.Error(t, err, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), bad)
	}
}

func TestCurrentRelease(t *testing.T) {
	now := time.Date(2024, time.July, 19, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, Release("20240701"), CurrentRelease(now))
}

func TestReleaseArchiveName(t *testing.T) {
	assert.Equal(t, "AccessGUDID_Delimited_Full_Release_20240301.zip", Release("20240301").ArchiveName())
}

const deviceTxt = "PrimaryDI|publishDate|deviceSterile|brandName|versionModelNumber\n" +
	"00819320201234|2019-06-10|true|Widget|\n" +
	"00819320205678|2020-01-15|false|Gadget|V2\n"

func TestReleaseFetch(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/AccessGUDID_Delimited_Full_Release_20240301.zip", testutil.Route{
		Body: testutil.Zip(t, map[string]string{DeviceFile: deviceTxt, "contains.txt": "x"}),
	})
	env := newEnv(t)
	src := NewRelease(env, "20240301", WithReleaseBaseURL(srv.URL+"/"))
	ctx := testutil.TestContext(t)

	assert.Equal(t, "gudid", src.Name())
	assert.Equal(t, "gudid", src.Collection())
	assert.Equal(t, env.Store.Path("gudid", "20240301", "device.txt"), src.Archive().Target)

	ds, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetch.Summary{Downloaded: 1}, ds.Summary())

	records, err := core.Collect(ctx, ds)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, []string{"PrimaryDI", "publishDate", "deviceSterile", "brandName", "versionModelNumber"}, first.Names())
	v, _ := first.Get("publishDate")
	assert.Equal(t, time.Date(2019, 6, 10, 0, 0, 0, 0, time.UTC), v)
	v, _ = first.Get("deviceSterile")
	assert.Equal(t, true, v)
	v, _ = first.Get("versionModelNumber")
	assert.Nil(t, v)
	v, _ = records[1].Get("deviceSterile")
	assert.Equal(t, false, v)

	again, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetch.Summary{Cached: 1}, again.Summary())
	assert.Equal(t, 1, srv.Total())
}

func TestReleaseFetchPropagatesFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	src := NewRelease(newEnv(t), "20991201", WithReleaseBaseURL(srv.URL+"/"))

	ds, err := src.Fetch(testutil.TestContext(t))
	require.Error(t, err)
	assert.Nil(t, ds)
	assert.True(t, errors.HasType(err, errors.ErrorTypeHTTPStatus))
	assert.Contains(t, err.Error(), "gudid release 20991201")
}

func TestListingPartialFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/list.json", testutil.Route{Headers: map[string]string{fetch.TotalPagesHeader: "2"}})
	srv.Handle("/list.json?page=1", testutil.Route{Body: []byte(`{"devices":[
		{"di":"00819320201234","deviceSterile":"true","publishDate":"2019-06-10","brand":""},
		{"di":"00819320205678","deviceCount":3}
	]}`)})
	srv.Handle("/list.json?page=2", testutil.Route{Status: http.StatusInternalServerError})

	env := newEnv(t)
	src := NewListing(env, WithListingURL(srv.URL+"/list.json"))
	ctx := testutil.TestContext(t)

	ds, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetch.Summary{Downloaded: 1, Failed: 1}, ds.Summary())
	require.Len(t, ds.Failed(), 1)
	assert.Equal(t, "page 2", ds.Failed()[0].Unit)

	records, err := core.Collect(ctx, ds)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"brand", "deviceSterile", "di", "publishDate"}, records[0].Names())
	v, _ := records[0].Get("deviceSterile")
	assert.Equal(t, true, v)
	v, _ = records[0].Get("brand")
	assert.Nil(t, v)
	v, _ = records[0].Get("publishDate")
	assert.Equal(t, time.Date(2019, 6, 10, 0, 0, 0, 0, time.UTC), v)
	v, _ = records[1].Get("deviceCount")
	assert.Equal(t, float64(3), v)

	assert.FileExists(t, env.Store.Path("gudid", "pages", "1.json"))
	assert.NoFileExists(t, env.Store.Path("gudid", "pages", "2.json"))
}

func TestListingMaintenancePage(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/list.json", testutil.Route{Headers: map[string]string{fetch.TotalPagesHeader: "2"}})
	srv.Handle("/list.json?page=1", testutil.Route{Body: []byte(`{"devices":[{"di":"00819320201234"}]}`)})
	srv.Handle("/list.json?page=2", testutil.Route{Body: []byte("<html>maintenance</html>")})

	env := newEnv(t)
	src := NewListing(env, WithListingURL(srv.URL+"/list.json"))
	ctx := testutil.TestContext(t)

	ds, err := src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetch.Summary{Downloaded: 1, Failed: 1}, ds.Summary())
	assert.NoFileExists(t, env.Store.Path("gudid", "pages", "2.json"))

	records, err := core.Collect(ctx, ds)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestValidatePage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "devices", body: `{"devices":[{"di":"1"}]}`},
		{name: "empty devices", body: `{"devices":[]}`},
		{name: "html", body: "<html>maintenance</html>", wantErr: true},
		{name: "no devices key", body: `{"error":"rate limited"}`, wantErr: true},
		{name: "truncated", body: `{"devices":[`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePage([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeData))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestListingMissingPageCount(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle("/list.json", testutil.Route{})

	src := NewListing(newEnv(t), WithListingURL(srv.URL+"/list.json"))
	_, err := src.Fetch(testutil.TestContext(t))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 0, srv.Hits(http.MethodGet, "/list.json"))
}

func TestReadPageMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"devices":[`), 0o644))

	var got error
	for _, err := range ReadPage(path) {
		got = err
	}
	require.Error(t, got)
	assert.True(t, errors.IsType(got, errors.ErrorTypeData))
}

func TestNew(t *testing.T) {
	env := newEnv(t)

	_, err := New(env)
	assert.Error(t, err, "release required")

	env.Release = "2024-03"
	_, err = New(env)
	assert.Error(t, err)

	env.Release = "20240301"
	src, err := New(env)
	require.NoError(t, err)
	require.IsType(t, &ReleaseSource{}, src)
	assert.Equal(t, Release("20240301"), src.(*ReleaseSource).Release())

	env.LegacyGUDID = true
	src, err = New(env)
	require.NoError(t, err)
	assert.IsType(t, &ListingSource{}, src)
}
