package main

import "github.com/Pratik1445/skillfolio/internal/cli"

func main() {
	cli.Execute()
}
