package main

import "github.com/sahayog/ms-go-donations/cmd"

func main() {
	cmd.Execute()
}
