package main

import "github.com/AvaProtocol/liquid-sdk/cmd"

func main() {
	cmd.Execute()
}
