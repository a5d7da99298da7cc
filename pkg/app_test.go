package pkg

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/sudesh1611/scanreport/pkg/archive"
	"github.com/sudesh1611/scanreport/pkg/config"
	"github.com/sudesh1611/scanreport/pkg/log"
	"github.com/sudesh1611/scanreport/pkg/provider/blackduck"
	"github.com/sudesh1611/scanreport/pkg/report"
	"github.com/sudesh1611/scanreport/pkg/types"
)

var now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type staticResolver string

func (s staticResolver) UpgradeGuidance(context.Context, blackduck.ComponentRef) string {
	return string(s)
}

func newTestApp(t *testing.T, resolver blackduck.Resolver) (*cli.App, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	out := &bytes.Buffer{}
	ac := AppConfig{
		Clock: clocktesting.NewFakeClock(now),
		Out:   out,
		NewResolver: func(context.Context, config.BlackDuck, *log.Logger) (blackduck.Resolver, error) {
			return resolver, nil
		},
	}
	return ac.NewApp("dev"), out
}

func loadCanonical(t *testing.T, path string) report.Canonical {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var c report.Canonical
	require.NoError(t, json.Unmarshal(b, &c))
	return c
}

func TestAppConfig_Twistlock(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "archive.db")
	logPath := filepath.Join(dir, "scanreport.log")
	common := []string{"--log-file", logPath, "--archive", dbPath}

	app, out := newTestApp(t, nil)
	err := app.Run(append([]string{"scanreport", "twistlock",
		"-i", "testdata/twistlock.json",
		"-o", outDir,
		"--overrides", "testdata/overrides",
	}, common...))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "busybox:1.31 (sha256:77aa)")
	assert.Contains(t, out.String(), "packages: 2, compliance issues: 0")
	assert.Contains(t, out.String(), "medium: 1")

	c := loadCanonical(t, filepath.Join(outDir, "sha256_77aa.processed.json"))
	assert.Equal(t, "sha256:77aa", c.ID)
	bucket := c.CVEResults["busybox"]["1.31"]
	require.NotNil(t, bucket)
	assert.Equal(t, []string{"/bin/busybox"}, bucket.Path)
	assert.Equal(t, "accepted risk", bucket.CVEs["CVE-2021-9"].Status)
	assert.Equal(t, "2021-05-06 07:08:09", bucket.CVEs["CVE-2021-9"].Published)
	assert.FileExists(t, filepath.Join(outDir, "sha256_77aa.raw.json"))

	logs, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Applied override")

	t.Run("archive list", func(t *testing.T) {
		app, out := newTestApp(t, nil)
		require.NoError(t, app.Run(append([]string{"scanreport", "archive", "list"}, common...)))
		assert.Contains(t, out.String(), "PROVIDER")
		assert.Regexp(t, `twistlock\s+sha256:77aa\s+busybox:1.31\s+2024-01-02T03:04:05Z`, out.String())
	})

	t.Run("archive show", func(t *testing.T) {
		app, out := newTestApp(t, nil)
		require.NoError(t, app.Run(append([]string{"scanreport", "archive", "show", "--id", "sha256:77aa"}, common...)))
		assert.Contains(t, out.String(), `"status": "accepted risk"`)
	})

	t.Run("archive show with unknown provider", func(t *testing.T) {
		app, _ := newTestApp(t, nil)
		err := app.Run(append([]string{"scanreport", "archive", "show", "--id", "sha256:77aa", "--provider", "clair"}, common...))
		assert.ErrorContains(t, err, `unknown provider "clair"`)
	})

	t.Run("archive delete", func(t *testing.T) {
		app, _ := newTestApp(t, nil)
		require.NoError(t, app.Run(append([]string{"scanreport", "archive", "delete",
			"--id", "sha256:77aa", "--provider", "twistlock"}, common...)))

		store, err := archive.Open(dbPath)
		require.NoError(t, err)
		defer store.Close()
		_, err = store.Get(types.ProviderTwistlock, "sha256:77aa")
		assert.ErrorIs(t, err, archive.ErrNotFound)
	})
}

func TestAppConfig_Twistlock_NoDocument(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(input, []byte(`[1, "two"]`), 0o644))

	app, _ := newTestApp(t, nil)
	err := app.Run([]string{"scanreport", "twistlock", "-q",
		"-i", input,
		"-o", dir,
		"--log-file", filepath.Join(dir, "scanreport.log"),
	})
	assert.ErrorContains(t, err, "no image scan document could be parsed")
}

func TestAppConfig_BlackDuck(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		resolver   blackduck.Resolver
		wantStatus string
		wantErr    string
	}{
		{
			name:       "offline",
			args:       []string{"--offline", "--version-id", "PV1", "--version-name", "app 1.0"},
			resolver:   staticResolver("unused"),
			wantStatus: "",
		},
		{
			name:       "without base url",
			args:       []string{"--version-id", "PV1"},
			resolver:   staticResolver("unused"),
			wantStatus: "",
		},
		{
			name:       "online",
			args:       []string{"-c", "testdata/online.yaml", "--version-id", "PV1"},
			resolver:   staticResolver("Short Term: 1.1.1k,Long Term: 3.0.0"),
			wantStatus: "Short Term: 1.1.1k,Long Term: 3.0.0",
		},
		{
			name:    "missing version id",
			args:    []string{"--offline"},
			wantErr: "--version-id is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			app, _ := newTestApp(t, tt.resolver)

			args := append([]string{"scanreport", "blackduck", "-q",
				"-i", "testdata/blackduck.json",
				"-o", dir,
				"--log-file", filepath.Join(dir, "scanreport.log"),
			}, tt.args...)
			err := app.Run(args)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			c := loadCanonical(t, filepath.Join(dir, "PV1.processed.json"))
			assert.Equal(t, "PV1", c.ID)
			require.Contains(t, c.CVEResults, "openssl")
			assert.Equal(t, tt.wantStatus, c.CVEResults["openssl"]["1.1.1"].CVEs["CVE-2020-1"].Status)
			assert.NotContains(t, c.CVEResults, "zlib")

			raw, err := os.ReadFile(filepath.Join(dir, "PV1.raw.json"))
			require.NoError(t, err)
			assert.Contains(t, string(raw), "not an object")
		})
	}
}

func TestAppConfig_MissingInput(t *testing.T) {
	app, _ := newTestApp(t, nil)
	err := app.Run([]string{"scanreport", "twistlock", "--log-file", filepath.Join(t.TempDir(), "x.log")})
	assert.ErrorContains(t, err, "--input is required")
}

func TestAppConfig_Diff(t *testing.T) {
	var exitCode int
	orig := cli.OsExiter
	cli.OsExiter = func(code int) { exitCode = code }
	t.Cleanup(func() { cli.OsExiter = orig })

	tests := []struct {
		name     string
		args     []string
		want     []string
		wantCode int
	}{
		{
			name: "differs",
			args: []string{"testdata/old.json", "testdata/new.json"},
			want: []string{`@ ["name"]`, `- "busybox:1.31"`, `+ "busybox:1.32"`},
		},
		{
			name:     "differs with exit code",
			args:     []string{"--exit-code", "testdata/old.json", "testdata/new.json"},
			want:     []string{`@ ["name"]`},
			wantCode: 1,
		},
		{
			name: "identical",
			args: []string{"--exit-code", "testdata/old.json", "testdata/old.json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exitCode = 0
			app, out := newTestApp(t, nil)
			_ = app.Run(append([]string{"scanreport", "diff"}, tt.args...))

			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
			if len(tt.want) == 0 {
				assert.Empty(t, out.String())
			}
			assert.Equal(t, tt.wantCode, exitCode)
		})
	}
}
