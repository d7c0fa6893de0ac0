package main

import "github.com/teniola/calldex/cmd"

func main() {
	cmd.Execute()
}
