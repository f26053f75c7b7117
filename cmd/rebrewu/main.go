package main

import (
	"github.com/ApfelTeeSaft/RebrewU/cmd/rebrewu/cmd"
)

func main() {
	cmd.Execute()
}
