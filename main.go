package main

import "github.com/wardenhq/sitewarden/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
