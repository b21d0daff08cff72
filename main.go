package main

import (
	"github.com/AzielCF/az-fbm/cmd"
)

func main() {
	cmd.Execute()
}
