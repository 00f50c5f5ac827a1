package main

import "github.com/MeKo-Tech/lumentrace/cmd/lumentrace/cmd"

func main() {
	cmd.Execute()
}
