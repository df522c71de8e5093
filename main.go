package main

import "github.com/takeshy/gitlabuploader/cmd"

func main() {
	cmd.Execute()
}
