package main

import "github.com/fakeyudi/termlog/cmd"

func main() {
	cmd.Execute()
}
