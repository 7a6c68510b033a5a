package main

import (
	"fmt"
	"os"

	_ "github.com/portworx/jobharness/drivers/job/rest"
	_ "github.com/portworx/jobharness/drivers/job/simulator"
	_ "github.com/portworx/jobharness/drivers/node/local"
	_ "github.com/portworx/jobharness/drivers/node/ssh"
	"github.com/portworx/jobharness/pkg/harnessctl"
	_ "github.com/portworx/jobharness/scenarios"
)

func main() {
	if err := harnessctl.NewCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
