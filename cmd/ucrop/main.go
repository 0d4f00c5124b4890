package main

import "github.com/MeKo-Tech/ucrop/cmd/ucrop/cmd"

func main() {
	cmd.Execute()
}
