// Package deployer runs one deployment from the command line.
//
// It resolves settings from the YAML file, the environment and flags, makes
// sure no other deployment runs from the same directory, builds a deploy
// session and executes the requested action.
package deployer
