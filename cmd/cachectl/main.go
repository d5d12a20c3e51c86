// Command cachectl inspects and flushes the tag cache, builds cache keys and serves the admin API
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
