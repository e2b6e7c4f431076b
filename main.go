package main

import "github.com/fusshn/booking-notifier/cmd"

func main() {
	cmd.Execute()
}
