// Command ripdctl is a CLI client for the ripd daemon.
package main

import "github.com/ripd-project/ripd/cmd/ripdctl/commands"

func main() {
	commands.Execute()
}
