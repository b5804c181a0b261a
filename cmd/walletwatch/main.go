package main

import "wallet-activity-alerts/internal/cli"

func main() {
	cli.Execute()
}
