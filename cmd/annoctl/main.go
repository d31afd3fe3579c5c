// Command annoctl inspects and moves annotation layers: it exports and
// imports their JSON state, packs the binary buffer, manages snapshots and
// syncs with a Redis mirror.
//
// Usage: annoctl [-c annostore.yaml] <command> [options]
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
