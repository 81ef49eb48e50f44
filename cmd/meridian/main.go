package main

import "meridian/cmd/handlers"

func main() {
	handlers.Execute()
}
