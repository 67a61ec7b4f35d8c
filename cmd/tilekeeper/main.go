// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/tilekeeper/cmd/tilekeeper/cmd"
)

func main() {
	cmd.Execute()
}
