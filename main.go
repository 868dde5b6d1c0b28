package main

import (
	"github.com/findy-network/findy-cxs/cmd"
)

func main() {
	cmd.Execute()
}
