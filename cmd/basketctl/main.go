package main

import "github.com/basketwatch/backend/cmd/basketctl/cmd"

func main() {
	cmd.Execute()
}
