package main

import "github.com/viant/sqlite-docstore/cmd"

func main() {
	cmd.Execute()
}
