// The main package for the collector executable.
package main

import (
	"github.com/JakeFAU/dealfeed-collector/cmd"
)

func main() {
	cmd.Execute()
}
