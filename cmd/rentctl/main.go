// Command rentctl computes rent schedules and pro-rations offline, without
// a store.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
