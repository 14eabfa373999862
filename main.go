package main

import "github.com/lepinkainen/bibsync/cmd"

var execute = cmd.Execute

func main() {
	execute()
}
