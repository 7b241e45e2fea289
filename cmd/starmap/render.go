package main

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/multierr"

	"github.com/utkarsh5026/starmap/pool"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

// renderReport prints one row per outcome followed by a summary.
func renderReport(w io.Writer, r *report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Index", "Input", "Status", "Result")

	for i, o := range r.Outcomes {
		status, result := describe(o)
		if err := table.Append(
			fmt.Sprintf("%d", o.Index),
			fmt.Sprintf("%d", r.Inputs[i]),
			status,
			result,
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Workers:   %d\n", r.Threads)
	fmt.Fprintf(w, "  Inputs:    %d\n", len(r.Outcomes))
	fmt.Fprintf(w, "  Succeeded: %s\n", green.Sprint(len(r.Outcomes)-r.Failed))
	fmt.Fprintf(w, "  Failed:    %s\n", red.Sprint(r.Failed))
	fmt.Fprintf(w, "  Dropped:   %d\n", r.Dropped)
	fmt.Fprintf(w, "  Elapsed:   %v\n", r.Elapsed)

	if err := pool.JoinErrors(r.Outcomes); err != nil {
		fmt.Fprintf(w, "  Errors:    %d joined\n", len(multierr.Errors(err)))
	}

	if len(r.Counters) > 0 {
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "Counters:")
		names := make([]string, 0, len(r.Counters))
		for name := range r.Counters {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-45s %v\n", name, r.Counters[name])
		}
	}
	return nil
}

// describe returns the status and result cells of one outcome.
func describe(o pool.Outcome[int]) (string, string) {
	var failure *pool.CapturedFailure
	switch {
	case o.Ok():
		return green.Sprint("ok"), fmt.Sprintf("%d", o.Value)
	case errors.As(o.Err, &failure):
		return red.Sprint("panic"), fmt.Sprint(failure.Panic)
	case errors.Is(o.Err, pool.ErrTaskDropped):
		return red.Sprint("dropped"), o.Err.Error()
	default:
		return red.Sprint("error"), o.Err.Error()
	}
}
