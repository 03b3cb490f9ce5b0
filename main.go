package main

import "github.com/open-feature/featuremanager/cmd"

func main() {
	cmd.Execute()
}
