package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/crx-deploy/internal/config"
	"github.com/oshokin/crx-deploy/internal/deploy"
	"github.com/oshokin/crx-deploy/internal/logger"
)

// Action is the deployment step requested on the command line.
type Action string

const (
	// ActionUpload uploads a package archive.
	ActionUpload Action = "upload"
	// ActionInstall installs a package already in the repository.
	ActionInstall Action = "install"
	// ActionEasyInstall uploads a package archive and installs it.
	ActionEasyInstall Action = "easy-install"
	// ActionRecompile recompiles JSPs.
	ActionRecompile Action = "recompile"
)

var (
	errUnknownAction       = errors.New("unknown action")
	errPackagePathRequired = errors.New("package archive path must be provided")
	errInstallPathRequired = errors.New("repository path must be provided for install")
)

// Options are inputs accepted by the deployer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	// A missing file is fine only when the path was not given explicitly.
	ConfigPath string
	// ConfigPathExplicit is set when the user passed --config.
	ConfigPathExplicit bool
	// Action selects what to do.
	Action Action
	// PackagePath is the local archive for upload and easy-install.
	PackagePath string
	// InstallPath is the repository path for install.
	InstallPath string
	// Recompile recompiles JSPs after a successful upload or install.
	Recompile bool
	// Overrides are values given as flags; they win over file and environment.
	Overrides Overrides
	// MarkerPath overrides MarkerFilename.
	MarkerPath string
	// Transport overrides the HTTP transport of the session.
	Transport deploy.Transport
}

// Overrides are optional flag values. Empty strings and a nil Retry are ignored.
type Overrides struct {
	Host     string
	User     string
	Password string
	Retry    *int
	LogLevel string
}

// Result is what a successful run reports back to the CLI.
type Result struct {
	// Messages are the server messages, one per completed step.
	Messages []string
	// UploadPath is the repository path of the uploaded package, if any.
	UploadPath string
}

// runner holds the state of one deployment.
type runner struct {
	opts    *Options
	cfg     *config.Config
	session *deploy.Session
}

// Run executes the deployment lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "crx-deploy")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return nil, err
	}

	markerPath := opts.MarkerPath
	if markerPath == "" {
		markerPath = MarkerFilename
	}

	if err = acquireMarker(ctx, markerPath); err != nil {
		return nil, err
	}

	defer releaseMarker(ctx, markerPath)

	result, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Deployment failed", "action", opts.Action, "error", err)

		return nil, err
	}

	logger.InfoKV(ctx, "Deployment completed", "action", opts.Action)

	return result, nil
}

// newRunner resolves settings and builds the session.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok && cfg.LogLevel != "" {
		logger.SetLevel(level)
	}

	sessionOpts := []deploy.Option{
		deploy.WithTimeouts(deploy.Timeouts{
			Upload:    cfg.UploadTimeout,
			Install:   cfg.InstallTimeout,
			Recompile: cfg.RecompileTimeout,
		}),
	}

	if opts.Transport != nil {
		sessionOpts = append(sessionOpts, deploy.WithTransport(opts.Transport))
	}

	session, err := deploy.NewSession(deploy.Params{
		Host:     cfg.Host,
		User:     cfg.User,
		Password: cfg.Password,
		Retry:    cfg.Retry,
	}, sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &runner{
		opts:    opts,
		cfg:     cfg,
		session: session,
	}, nil
}

func validateOptions(opts *Options) error {
	switch opts.Action {
	case ActionUpload, ActionEasyInstall:
		if opts.PackagePath == "" {
			return errPackagePathRequired
		}
	case ActionInstall:
		if opts.InstallPath == "" {
			return errInstallPathRequired
		}
	case ActionRecompile:
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}

	return nil
}

// loadConfig merges the settings file, CRX_DEPLOY_* variables and flags,
// in increasing order of precedence, and validates the result.
func loadConfig(ctx context.Context, opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)

	switch {
	case err == nil:
		logger.DebugKV(ctx, "Loaded settings", "path", opts.ConfigPath)
	case errors.Is(err, os.ErrNotExist) && !opts.ConfigPathExplicit:
		cfg = new(config.Config)
	default:
		return nil, err
	}

	if err = config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	opts.Overrides.apply(cfg)

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return cfg, nil
}

func (o Overrides) apply(cfg *config.Config) {
	if o.Host != "" {
		cfg.Host = o.Host
	}

	if o.User != "" {
		cfg.User = o.User
	}

	if o.Password != "" {
		cfg.Password = o.Password
	}

	if o.Retry != nil {
		retry := *o.Retry
		cfg.Retry = &retry
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}

// run performs the requested action and the optional recompile.
func (r *runner) run(ctx context.Context) (*Result, error) {
	result := new(Result)

	retry, retrySet := r.session.Retry()
	logger.InfoKV(ctx, "Deployment target",
		"host", r.cfg.Host, "user", r.cfg.User, "retry", retry, "retry_set", retrySet)

	var (
		message string
		err     error
	)

	switch r.opts.Action {
	case ActionUpload:
		message, err = r.session.Upload(ctx, r.opts.PackagePath)
	case ActionInstall:
		message, err = r.session.Install(ctx, deploy.WithPath(r.opts.InstallPath))
	case ActionEasyInstall:
		message, err = r.session.EasyInstall(ctx, r.opts.PackagePath)
	case ActionRecompile:
		message, err = r.session.Recompile(ctx)
	}

	if err != nil {
		return nil, err
	}

	result.Messages = append(result.Messages, message)
	result.UploadPath = r.session.UploadPath()

	if !r.opts.Recompile || r.opts.Action == ActionRecompile {
		return result, nil
	}

	message, err = r.session.Recompile(ctx)
	if err != nil {
		return nil, fmt.Errorf("recompile after %s: %w", r.opts.Action, err)
	}

	result.Messages = append(result.Messages, message)

	return result, nil
}
