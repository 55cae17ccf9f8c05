package main

import "github.com/frahmantamala/booking-ledger/cmd"

func main() {
	cmd.Execute()
}
