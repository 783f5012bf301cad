// The main package for the a11y-auditor executable.
package main

import (
	"github.com/pmorten/a11y-auditor/cmd"
)

func main() {
	cmd.Execute()
}
