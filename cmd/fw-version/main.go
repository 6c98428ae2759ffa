package main

import "github.com/oshokin/fw-release/cmd/fw-version/cmd"

func main() {
	cmd.Execute()
}
