/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "songtldr/cmd"

func main() {
	cmd.Execute()
}
