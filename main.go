package main

import "github.com/deckforge/chainsale/cmd"

func main() {
	cmd.Execute()
}
