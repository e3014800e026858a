/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/cloudpanel/authcore/cmd"

func main() {
	cmd.Execute()
}
