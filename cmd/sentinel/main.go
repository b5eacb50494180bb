package main

import "github.com/ashley-ai/sentinel/cmd/sentinel/cmd"

func main() {
	cmd.Execute()
}
