package main

import "github.com/gman622/qroute/cmd"

func main() {
	cmd.Execute()
}
