// Command console is the Shuletrack administration console.
//
// It talks to the REST backend at API_BASEURL, keeps its session in SESSION_PATH
// and renders every resource of the active school as a table.
package main

import (
	"os"

	"github.com/gachaupg/shuletrack/core"
)

var stdinFd = int(os.Stdin.Fd())

func main() {
	var exitCode int
	err := newContainer(core.NewConfig).Invoke(func(cli *commandLine) {
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				printError(os.Stderr, err)
			}
			exitCode = 1
		}
	})
	if err != nil {
		printError(os.Stderr, err)
		exitCode = 1
	}
	os.Exit(exitCode)
}
