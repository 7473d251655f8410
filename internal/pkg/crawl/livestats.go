package crawl

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uilive"
	"github.com/gosuri/uitable"
	"github.com/internetarchive/frontier/internal/pkg/stats"
)

// LiveStats redraws the crawl counters on w every second until ctx is done
// or the pool finished. summary, if not nil, is printed below the table.
func LiveStats(ctx context.Context, w io.Writer, job string, st *stats.Stats, pool *Pool, summary func() string) {
	var m runtime.MemStats

	writer := uilive.New()
	writer.Out = w
	writer.Start()
	defer writer.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		runtime.ReadMemStats(&m)

		table := uitable.New()
		table.MaxColWidth = 80
		table.Wrap = true

		table.AddRow("", "")
		table.AddRow("  - Job:", job)
		for _, row := range statsRows(st) {
			table.AddRow(row[0], row[1])
		}
		if pool != nil {
			table.AddRow("  - Active workers:", pool.ActiveWorkers())
		}
		table.AddRow("", "")
		table.AddRow("  - Allocated (heap):", humanize.Bytes(m.Alloc))
		table.AddRow("  - Goroutines:", runtime.NumGoroutine())
		table.AddRow("", "")

		fmt.Fprintln(writer, table.String())
		if summary != nil {
			fmt.Fprintln(writer, summary())
		}
		writer.Flush()

		if pool != nil && pool.Finished.Get() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func statsRows(st *stats.Stats) [][2]string {
	values := st.GetMap()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		var v string
		switch value := values[k].(type) {
		case int64:
			v = humanize.Comma(value)
		default:
			v = fmt.Sprint(value)
		}
		rows = append(rows, [2]string{"  - " + k + ":", v})
	}

	return rows
}
