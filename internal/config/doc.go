// Package config defines the deployment target settings and provides helpers
// to load, validate and save them in YAML format.
//
// Values from the file can be overridden by CRX_DEPLOY_* environment variables
// (see ApplyEnv), which keeps passwords out of files checked into a repository.
package config
