// Command engined hosts the content-engine core behind a small CLI:
// serve runs a long-lived actor (optionally with a control-plane HTTP
// listener), replay prints a cold-replayed snapshot, grant/revoke submit
// one-shot capability delegations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
