package main

import "lexanalyzer/cmd"

func main() {
	cmd.Execute()
}
