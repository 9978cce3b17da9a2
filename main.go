package main

import "nlcp/cmd"

func main() {
	cmd.Execute()
}
