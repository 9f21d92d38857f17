// evtxdump prints the XML rendering of every record in one or more EVTX
// files, one line per record, in the style of the teacher's own
// dump_evtx command (dump_evtx/main.go): a thin driver over the library,
// not a feature-rich CLI (§1 Non-goals leave CLI framing to external
// collaborators).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"evtxkit"
)

func normalizeNl(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func main() {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for _, fname := range os.Args[1:] {
		settings := evtxkit.DefaultSettings()
		p, err := evtxkit.OpenFile(fname, settings)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open(%s): %v\n", fname, err)
			os.Exit(2)
		}

		records, err := p.Records(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse(%s): %v\n", fname, err)
			os.Exit(2)
		}

		for _, rec := range records {
			if rec.Err != nil {
				fmt.Fprintf(out, "Record #%d: error: %v\n", rec.RecordID, rec.Err)
				continue
			}
			fmt.Fprintf(out, "Record #%d %s\n", rec.RecordID, normalizeNl(rec.XML))
		}
	}
}
