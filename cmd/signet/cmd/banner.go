package cmd

import (
	"fmt"
)

const banner = `
  _____ _                  _
 / ____(_)                | |
| (___  _  __ _ _ __   ___| |_
 \___ \| |/ _` + "`" + ` | '_ \ / _ \ __|
 ____) | | (_| | | | |  __/ |_
|_____/|_|\__, |_| |_|\___|\__|
           __/ |
          |___/
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Certificate Request Service - Version %s\x1b[0m\n\n", Version)
}
