package main

import "snapexpense/cmd"

func main() {
	cmd.Execute()
}
