// Package main is the entry point for the luminote server.
package main

func main() {
	Execute()
}
