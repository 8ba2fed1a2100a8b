package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/meddevices/pkg/errors"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost", "localhost", false},
		{"127.0.0.1", "127.0.0.1", false},
		{"::1", "::1", false},
		{"2001:db8:0:0:0:0:0:1", "2001:db8::1", false},
		{"mongo.internal", "", true},
		{"", "", true},
		{"256.0.0.1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateHost(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePort(t *testing.T) {
	assert.Equal(t, 27017, NormalizePort(27017))
	assert.Equal(t, 27017, NormalizePort(-27017))
	assert.Equal(t, 0, NormalizePort(0))
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{27017, 27017, false},
		{-27018, 27018, false},
		{1, 1, false},
		{65535, 65535, false},
		{0, 0, true},
		{65536, 0, true},
		{-70000, 0, true},
	}
	for _, tt := range tests {
		got, err := ValidatePort(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateDatabaseName(t *testing.T) {
	assert.NoError(t, ValidateDatabaseName("medical_devices"))
	assert.NoError(t, ValidateDatabaseName("a$b"))
	assert.Error(t, ValidateDatabaseName(""))
	assert.Error(t, ValidateDatabaseName("$x"))
	assert.Error(t, ValidateDatabaseName("a.b"))
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		require.NoError(t, Default().Validate())
	})

	t.Run("release format", func(t *testing.T) {
		cfg := Default()
		cfg.Release = "20240301"
		require.NoError(t, cfg.Validate())

		cfg.Release = "202403"
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("empty data dir", func(t *testing.T) {
		cfg := Default()
		cfg.DataDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("mongo settings are not checked", func(t *testing.T) {
		cfg := Default()
		cfg.Mongo.Host = "mongo.internal"
		cfg.Mongo.Database = "a.b"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("negative timeout", func(t *testing.T) {
		cfg := Default()
		cfg.HTTP.RequestTimeout = -time.Second
		assert.Error(t, cfg.Validate())
	})
}

func TestMongoConfigValidate(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Mongo.Validate())
	})

	t.Run("bad batch size", func(t *testing.T) {
		cfg := Default()
		cfg.Mongo.BatchSize = 0
		assert.Error(t, cfg.Mongo.Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := Default()
		cfg.Mongo.Port = 99999
		err := cfg.Mongo.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port must be between 1 and 65535")
	})

	t.Run("normalizes", func(t *testing.T) {
		cfg := Default()
		cfg.Mongo.Host = "::ffff:10.0.0.1"
		cfg.Mongo.Port = -27018
		require.NoError(t, cfg.Mongo.Validate())
		assert.Equal(t, 27018, cfg.Mongo.Port)
	})
}

func TestLoadFile(t *testing.T) {
	t.Setenv("MEDDEVICES_TEST_DB", "fda")

	path := filepath.Join(t.TempDir(), "meddevices.yaml")
	yaml := `
data_dir: /var/cache/meddevices
release: "20240101"
http:
  request_timeout: 45s
mongo:
  host: 10.0.0.5
  port: -27018
  database: ${MEDDEVICES_TEST_DB}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, -27018, cfg.Mongo.Port)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Mongo.Validate())

	assert.Equal(t, "/var/cache/meddevices", cfg.DataDir)
	assert.Equal(t, "20240101", cfg.Release)
	assert.Equal(t, 45*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "10.0.0.5", cfg.Mongo.Host)
	assert.Equal(t, 27018, cfg.Mongo.Port)
	assert.Equal(t, "fda", cfg.Mongo.Database)
	// untouched sections keep their defaults
	assert.Equal(t, 1000, cfg.Mongo.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileEmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileDefersValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("release: \"202403\"\nmongo:\n  database: a.b\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	// a later override repairs the file value
	cfg.Release = "20240301"
	require.NoError(t, cfg.Validate())

	err = cfg.Mongo.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mongo: [unclosed\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadFileEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.yaml")
	yaml := "endpoints:\n  gudid_listing: http://127.0.0.1:8080/list.json\n  premarket: http://127.0.0.1:8080/ftparea/\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/list.json", cfg.Endpoints.GUDIDListing)
	assert.Equal(t, "http://127.0.0.1:8080/ftparea/", cfg.Endpoints.Premarket)
	assert.Empty(t, cfg.Endpoints.GUDIDRelease)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A", "x")
	t.Setenv("B", "")
	assert.Equal(t, "x-x-", substituteEnvVars("${A}-${A}-${B}"))
	assert.Equal(t, "no vars", substituteEnvVars("no vars"))
	assert.Equal(t, "open ${A", substituteEnvVars("open ${A"))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Mongo.Database = "roundtrip"
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
