// Command mmusim runs the memory-management simulator.
package main

import "github.com/sarchlab/mmusim/mmusim/cmd"

func main() {
	cmd.Execute()
}
