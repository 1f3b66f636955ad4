package main

import "github.com/jmehdipour/mail-gateway/cmd"

func main() {
	cmd.Execute()
}
