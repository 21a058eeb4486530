// Command quillmeshd runs the federated wiki server.
package main

import (
	"os"

	"github.com/quillmesh/quillmesh/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
