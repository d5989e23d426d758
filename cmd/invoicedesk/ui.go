package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/dharsanguruparan/InvoiceDesk/internal/model"
	"github.com/dharsanguruparan/InvoiceDesk/internal/store"
)

var (
	doneColor    = color.New(color.FgGreen)
	pendingColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	faintColor   = color.New(color.Faint)
)

func colorStatus(s model.Status) string {
	switch s {
	case model.StatusDone:
		return doneColor.Sprint(s)
	case model.StatusPending:
		return pendingColor.Sprint(s)
	case model.StatusError, model.StatusException:
		return errorColor.Sprint(s)
	}
	return string(s)
}

func newSpinner(message string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return s
}

func printInvoices(w io.Writer, invoices []store.Invoice) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCASE\tPAGES\tSTATUS\tMODIFIED\tFILE")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			inv.ID, inv.CaseName, inv.Pages, colorStatus(inv.Status), inv.ModifiedAt, inv.File)
	}
	_ = tw.Flush()
}

func printInvoice(w io.Writer, inv store.Invoice) {
	fmt.Fprintf(w, "#%d %s  [%s]\n", inv.ID, inv.CaseName, colorStatus(inv.Status))
	fmt.Fprintf(w, "  file:      %s (%d pages)\n", inv.File, inv.Pages)
	fmt.Fprintf(w, "  uploaded:  %s\n", inv.UploadedAt)
	fmt.Fprintf(w, "  modified:  %s\n", inv.ModifiedAt)
	if !inv.HasAttachment {
		faintColor.Fprintln(w, "  no PDF attached in the running server; re-upload with `invoicedesk attach`")
	}
	for _, f := range model.FormFields {
		v := inv.Data[f.Name]
		if v == "" {
			v = faintColor.Sprint("-")
		}
		fmt.Fprintf(w, "  %-15s %s\n", f.Label+":", v)
	}
	if len(inv.Boxes) > 0 {
		fmt.Fprintf(w, "  %d bounding boxes\n", len(inv.Boxes))
	}
}

func printStats(w io.Writer, total int, counts map[model.Status]int) {
	statuses := make([]model.Status, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	fmt.Fprintf(w, "%d invoices\n", total)
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-10s %d\n", colorStatus(s), counts[s])
	}
}
