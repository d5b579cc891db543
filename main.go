// File: main.go
package main

import (
	"github.com/activebook/prepdash/cmd"
)

func main() {
	cmd.Execute()
}
