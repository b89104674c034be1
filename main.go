package main

import "beatmarket/cmd"

func main() {
	cmd.Execute()
}
