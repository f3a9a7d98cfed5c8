// Command simpledb inspects and edits SQLite databases through simpledb
// lists.
package main

import "github.com/mesh-intelligence/simpledb/internal/cli"

func main() {
	cli.Execute()
}
