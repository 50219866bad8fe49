package main

import "pve-k3s-tool/pkg/cmd"

func main() {
	cmd.Execute()
}
