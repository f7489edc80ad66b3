package main

import "github.com/longkey1/rulechat/cmd"

func main() {
	cmd.Execute()
}
