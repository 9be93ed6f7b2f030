// derive_addresses.go prints the first addresses of an output descriptor.
// Usage: go run scripts/derive_addresses.go <network> <descriptor> [count]
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Klingon-tech/klingwallet/pkg/descriptor"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: derive_addresses <network> <descriptor> [count]")
		os.Exit(1)
	}
	params, err := types.NetParams(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	desc, err := descriptor.Parse(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := desc.SanityCheck(params); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	count := 5
	if len(os.Args) > 3 {
		if count, err = strconv.Atoi(os.Args[3]); err != nil || count <= 0 {
			fmt.Fprintln(os.Stderr, "count must be a positive integer")
			os.Exit(1)
		}
	}
	if !desc.IsRange() {
		count = 1
	}
	for _, d := range desc.Split() {
		fmt.Println(d.String())
		for i := range uint32(count) {
			addr, err := d.AddressAt(i, params)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Printf("  %d  %s\n", i, addr)
		}
	}
}
