// Command permuter runs pipeline permutation experiments described in a
// YAML file against a numeric CSV dataset.
//
//	permuter run --config experiment.yaml --data data.csv --target label --out scores.csv
//	permuter list
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
