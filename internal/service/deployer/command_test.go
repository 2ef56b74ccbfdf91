package deployer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/crx-deploy/internal/config"
	"github.com/oshokin/crx-deploy/internal/deploy"
)

// newPackageManager starts a fake package manager that accepts admin/admin.
func newPackageManager(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, password, ok := r.BasicAuth(); !ok || user != "admin" || password != "admin" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		switch r.FormValue("cmd") {
		case "upload":
			_, _ = w.Write([]byte(`{"success":true,"msg":"Package uploaded","path":"/etc/packages/acme/site.zip"}`))
		case "install":
			if r.URL.Path != "/crx/packmgr/service/.json/etc/packages/acme/site.zip" {
				_, _ = w.Write([]byte(`{"success":false,"msg":"no such package"}`))

				return
			}

			_, _ = w.Write([]byte(`{"success":true,"msg":"Package installed"}`))
		case "recompile":
			http.Redirect(w, r, r.URL.Path, http.StatusFound)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func hostOf(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

func baseOptions(t *testing.T, server *httptest.Server) *Options {
	t.Helper()

	dir := t.TempDir()
	archive := filepath.Join(dir, "site.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK"), 0o600))

	return &Options{
		ConfigPath:  filepath.Join(dir, config.DefaultConfigFilename),
		PackagePath: archive,
		MarkerPath:  filepath.Join(dir, MarkerFilename),
		Overrides: Overrides{
			Host:     hostOf(server),
			User:     "admin",
			Password: "admin",
		},
		Transport: deploy.NewHTTPTransport(server.Client()),
	}
}

// TestRun_EasyInstallAndRecompile drives the whole flow and cleans up the marker.
func TestRun_EasyInstallAndRecompile(t *testing.T) {
	t.Parallel()

	opts := baseOptions(t, newPackageManager(t))
	opts.Action = ActionEasyInstall
	opts.Recompile = true

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	require.Contains(t, result.Messages[0], "Package installed")
	require.Equal(t, deploy.RecompiledMessage, result.Messages[1])
	require.Equal(t, "/etc/packages/acme/site.zip", result.UploadPath)

	_, err = os.Stat(opts.MarkerPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_Install installs a package already in the repository.
func TestRun_Install(t *testing.T) {
	t.Parallel()

	opts := baseOptions(t, newPackageManager(t))
	opts.Action = ActionInstall
	opts.InstallPath = "/etc/packages/acme/other.zip"

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, deploy.ErrApplicationFailure)
	require.ErrorContains(t, err, "no such package")
}

// TestRun_SettingsFile reads the target from YAML and lets flags win.
func TestRun_SettingsFile(t *testing.T) {
	t.Parallel()

	server := newPackageManager(t)
	opts := baseOptions(t, server)
	opts.Action = ActionUpload
	opts.ConfigPathExplicit = true

	retry := 1
	require.NoError(t, config.Save(opts.ConfigPath, &config.Config{
		Host:     hostOf(server),
		User:     "admin",
		Password: "wrong",
		Retry:    &retry,
	}))

	opts.Overrides = Overrides{Password: "admin"}

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, "/etc/packages/acme/site.zip", result.UploadPath)
}

// TestRun_MissingExplicitConfig fails when --config points nowhere.
func TestRun_MissingExplicitConfig(t *testing.T) {
	t.Parallel()

	opts := baseOptions(t, newPackageManager(t))
	opts.Action = ActionRecompile
	opts.ConfigPathExplicit = true

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_InvalidOptions rejects incomplete command lines before any request.
func TestRun_InvalidOptions(t *testing.T) {
	t.Parallel()

	server := newPackageManager(t)

	opts := baseOptions(t, server)
	opts.Action = "deploy"
	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, errUnknownAction)

	opts = baseOptions(t, server)
	opts.Action = ActionEasyInstall
	opts.PackagePath = ""
	_, err = Run(context.Background(), opts)
	require.ErrorIs(t, err, errPackagePathRequired)

	opts = baseOptions(t, server)
	opts.Action = ActionInstall
	_, err = Run(context.Background(), opts)
	require.ErrorIs(t, err, errInstallPathRequired)

	opts = baseOptions(t, server)
	opts.Action = ActionRecompile
	opts.Overrides.Host = "bad host"
	_, err = Run(context.Background(), opts)
	require.Error(t, err)
}

// TestRun_AlreadyRunning refuses to start while the marker owner is alive.
func TestRun_AlreadyRunning(t *testing.T) {
	t.Parallel()

	opts := baseOptions(t, newPackageManager(t))
	opts.Action = ActionRecompile
	require.NoError(t, os.WriteFile(opts.MarkerPath, []byte(strconv.Itoa(os.Getpid())), 0o600))

	_, err := Run(context.Background(), opts)
	require.ErrorIs(t, err, errDeploymentRunning)

	_, err = os.Stat(opts.MarkerPath)
	require.NoError(t, err)
}
