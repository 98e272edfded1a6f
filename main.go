package main

import (
	"github.com/luma/huddle/cmd"
)

func main() {
	cmd.Execute()
}
