package main

import "go-glsync/cmd/glsyncctl/cmd"

func main() {
	cmd.Execute()
}
