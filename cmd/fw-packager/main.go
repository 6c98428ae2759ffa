package main

import "github.com/oshokin/fw-release/cmd/fw-packager/cmd"

func main() {
	cmd.Execute()
}
