/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/GoldenEggs-Workshop/spend-what-server/cmd"

func main() {
	cmd.Execute()
}
