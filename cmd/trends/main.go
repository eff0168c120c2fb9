// The main package for the trends executable.
package main

import "github.com/JakeFAU/trends-scraper/cmd"

// main defers all execution to the cobra command tree.
func main() {
	cmd.Execute()
}
