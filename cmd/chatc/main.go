package main

import "github.com/mladen081/u-m/cmd/chatc/cmd"

func main() {
	cmd.Execute()
}
