// Command catalogctl talks to the catalog API from a terminal.  The auth
// cookies are kept in a session file between invocations.
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
