package main

import "github.com/MrEthical07/linkauth/cmd/linkauthd/cmd"

func main() {
	cmd.Execute()
}
