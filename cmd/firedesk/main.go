// Command firedesk browses, queries, watches and bulk-edits document stores.
package main

import "github.com/roach88/firedesk/internal/cli"

func main() {
	cli.Main()
}
