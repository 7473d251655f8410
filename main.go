// frontier is the scheduling core of a web crawler: it decides which URI a
// worker fetches next, paces requests per queue key and durably tracks the
// discovered work so a crawl can be suspended and resumed from checkpoints.
package main

import (
	"fmt"
	"os"

	"github.com/internetarchive/frontier/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
