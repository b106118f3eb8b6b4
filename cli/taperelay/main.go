package main

import (
	"fmt"
	"os"

	taperelaycmder "github.com/papercomputeco/taperelay/cmd/taperelay"
)

func main() {
	cmd := taperelaycmder.NewTaperelayCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
