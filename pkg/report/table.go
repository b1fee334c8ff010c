package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/vnykmshr/flowbench/pkg/metrics"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

// RenderTable writes a human-readable summary of r to w.
func RenderTable(w io.Writer, r *transfer.Report, useColor bool) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.SetTitle("flowbench run " + r.RunID)
	tbl.AppendRows([]table.Row{
		{"Source", r.Source},
		{"Sink", r.Sink},
		{"Target", humanize.IBytes(uint64(r.TargetBytes))},
		{"Read", humanize.IBytes(uint64(r.BytesRead))},
		{"Written", fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(r.BytesWritten)), r.BytesWritten)},
		{"Elapsed", fmt.Sprintf("%.3f s", r.ElapsedSeconds)},
		{"Throughput", fmt.Sprintf("%.2f KBps (%s/s)", r.ThroughputKiBps(), humanize.IBytes(uint64(r.Throughput)))},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Peak queued", humanize.IBytes(uint64(r.Channel.PeakQueued))},
		{"Blocked sends", r.Channel.BlockedSends},
		{"Receive timeouts", r.Channel.ReceiveTimeouts},
	})
	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"Status", statusColor(r.Status(), useColor)})
	if r.Error != "" {
		tbl.AppendRow(table.Row{"Error", r.Error})
	}

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}

func statusColor(status string, useColor bool) string {
	var c *color.Color
	switch status {
	case metrics.StatusComplete:
		c = color.New(color.FgGreen, color.Bold)
	case metrics.StatusIncomplete:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed, color.Bold)
	}

	if useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(status)
}
