package main

import "capstone/cmd"

func main() {
	cmd.Execute()
}
