package main

import "github.com/Togather-Foundation/datastudy/cmd/server/cmd"

func main() {
	cmd.Execute()
}
