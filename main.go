package main

import "timeline-cache/cmd"

func main() {
	cmd.Execute()
}
