package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/callify-backend/internal/config"
	"github.com/JakeFAU/callify-backend/internal/retention"
)

type fakeApp struct {
	report retention.Report
	runErr error
	ran    bool
	closed bool
}

func (a *fakeApp) Run(context.Context) error {
	a.ran = true
	return a.runErr
}

func (a *fakeApp) Cleanup(context.Context) retention.Report { return a.report }

func (a *fakeApp) Close(context.Context) { a.closed = true }

func (a *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

// installFakes swaps the package factories; tests using it must not run in parallel.
func installFakes(t *testing.T, app *fakeApp, cfgErr error) *string {
	t.Helper()
	origApp, origLoad := newApp, loadConfig
	t.Cleanup(func() {
		newApp, loadConfig = origApp, origLoad
	})

	var gotPath string
	loadConfig = func(path string) (config.Config, error) {
		gotPath = path
		return config.Config{}, cfgErr
	}
	newApp = func(context.Context, config.Config) (App, error) {
		return app, nil
	}
	return &gotPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestServeRunsApp(t *testing.T) {
	app := &fakeApp{}
	path := installFakes(t, app, nil)

	_, err := execute(t, "serve", "--config", "callify.yaml")
	require.NoError(t, err)
	require.True(t, app.ran)
	require.Equal(t, "callify.yaml", *path)
}

func TestServeIgnoresCanceledContext(t *testing.T) {
	installFakes(t, &fakeApp{runErr: context.Canceled}, nil)

	_, err := execute(t, "serve")
	require.NoError(t, err)
}

func TestServeReportsRunError(t *testing.T) {
	installFakes(t, &fakeApp{runErr: errors.New("bind: address in use")}, nil)

	_, err := execute(t, "serve")
	require.ErrorContains(t, err, "address in use")
}

func TestConfigErrorStopsCommand(t *testing.T) {
	app := &fakeApp{}
	installFakes(t, app, errors.New("server.port must be > 0"))

	_, err := execute(t, "serve")
	require.ErrorContains(t, err, "load config")
	require.False(t, app.ran)
}

func TestCleanupPrintsReport(t *testing.T) {
	app := &fakeApp{report: retention.Report{
		retention.CollectionQuotas:   {Deleted: 4},
		retention.CollectionAnalyses: {Deleted: 1},
	}}
	installFakes(t, app, nil)

	out, err := execute(t, "cleanup")
	require.NoError(t, err)
	require.Equal(t, "rateLimits: deleted 4\nwebsiteAnalyses: deleted 1\n", out)
	require.True(t, app.closed)
}

func TestCleanupReturnsCollectionErrors(t *testing.T) {
	app := &fakeApp{report: retention.Report{
		retention.CollectionQuotas:   {Err: errors.New("permission denied")},
		retention.CollectionAnalyses: {Deleted: 2},
	}}
	installFakes(t, app, nil)

	_, err := execute(t, "cleanup")
	require.ErrorContains(t, err, "rateLimits: permission denied")
	require.True(t, app.closed)
}
