// Command ncrpc opens a NETCONF session with a device and executes RPCs.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
