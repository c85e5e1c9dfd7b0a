// bodyrewrite applies the proxy's request body rewrite to a single body
// read from a file or stdin and writes the body that would be forwarded to stdout
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
