// Package version exposes build metadata for crx-deploy.
//
// Version, Commit and BuildTime are injected with -ldflags and keep local
// defaults otherwise. The same string is sent as the HTTP User-Agent.
package version
