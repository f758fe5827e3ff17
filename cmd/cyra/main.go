// Command cyra is the security companion CLI.
// Usage: cyra serve | cyra scan link <url> | cyra keygen -n 24 | ...
package main

import "github.com/raysh454/cyra/internal/cli"

func main() {
	cli.Execute()
}
