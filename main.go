package main

import "civicsync-engine/cmd"

func main() {
	cmd.Execute()
}
