// Command chatflowctl drives a chatflow server from the shell: create a
// chatflow from a description, wait for its schema, publish it and read
// submissions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
