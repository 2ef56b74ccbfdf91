package main

import "github.com/oshokin/crx-deploy/cmd/crx-deploy/cmd"

func main() {
	cmd.Execute()
}
