package main

import "github.com/huddlewire/huddle/cmd/huddle/cmd"

func main() {
	cmd.Execute()
}
