package main

import "github.com/soroboxing/gymgate/cmd/gymgate/cmd"

func main() {
	cmd.Execute()
}
