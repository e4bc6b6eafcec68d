package main

import (
	"veilleur/cmd/handlers"
)

func main() {
	handlers.Execute()
}
