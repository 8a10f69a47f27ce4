package main

import "github.com/milckywayy/ISOD-NewsAnalytics/cmd"

func main() {
	cmd.Execute()
}
