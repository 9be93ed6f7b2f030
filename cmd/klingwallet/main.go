// klingwallet is a command-line descriptor wallet backed by a bitcoind
// node.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "klingwallet"
	app.Version = version
	app.Usage = "Descriptor wallet that watches a bitcoind node"
	app.Flags = globalFlags
	app.Commands = []*cli.Command{
		&create,
		&list,
		&deleteCmd,
		&address,
		&newaddress,
		&descriptors,
		&importdescriptor,
		&utxos,
		&balance,
		&send,
		&applyblock,
		&syncCmd,
		&generate,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[klingwallet] %v\n", err)
	os.Exit(1)
}
