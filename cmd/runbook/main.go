package main

import "runbook/internal/app"

func main() {
	app.Run()
}
