package main

import "github.com/kalvora/accounts-auth/cmd"

func main() {
	cmd.Execute()
}
