package main

import "carrier-reports/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
