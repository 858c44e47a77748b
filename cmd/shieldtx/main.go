// main.go - shieldtx command line tool.
//
// Commands:
//   - keygen: create a wallet with fresh spending, viewing and nullifying keys
//   - hash-bound-params: hash a bound-params JSON document as the circuit sees it
//   - simulate: deposit, build a transfer, prove it, apply it to a local ledger and scan the outputs
//
// Usage:
//
//	shieldtx --config shieldtx.json simulate --deposit 100 --send 40 --prover groth16 --hash-suite mimc
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
