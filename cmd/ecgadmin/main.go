// Command ecgadmin bootstraps and seeds the ECG store.
package main

import (
	"fmt"
	"os"

	"github.com/patric-chuzhbe/ecgstore/internal/admincmd"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	root := admincmd.NewRootCmd(version, buildDate)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
