// The main package for the product-search executable.
package main

import (
	"github.com/JakeFAU/product-search-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
