package main

import "github.com/src-lua/apogee/cmd/apogee/root"

func main() {
	root.Execute()
}
