package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/artpar/paasdeploy/internal/core/domain"
	"github.com/artpar/paasdeploy/internal/shell/store"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type historyOpts struct {
	*rootOpts
	app    string
	limit  int
	offset int
}

func newHistory(parent *rootOpts) *historyOpts {
	return &historyOpts{rootOpts: parent}
}

func (opts *historyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployment runs, newest first",
		Example: makeExample(
			"paasdeploy history",
			"paasdeploy history -a web --limit 5",
		),
		Args: noArgs,
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.app, "app", "a", "", "only show runs of this application")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "number of runs to skip")
	return cmd
}

func (opts *historyOpts) RunE(cmd *cobra.Command, _ []string) (err error) {
	history, err := opts.openHistory()
	if err != nil {
		return err
	}
	if history == nil {
		return errors.New("run history is disabled: set database.dsn")
	}
	defer func() { err = multierr.Append(err, history.Close()) }()

	listOpts := store.ListOptions{Limit: opts.limit, Offset: opts.offset}.Normalize()
	var runs []domain.Run
	if opts.app != "" {
		runs, err = history.ListRunsByApp(cmd.Context(), opts.app, listOpts)
	} else {
		runs, err = history.ListRuns(cmd.Context(), listOpts)
	}
	if err != nil {
		return err
	}

	out := newTabwriter(opts.stdout)
	fmt.Fprintln(out, "STARTED\tRUN\tAPP\tUSER\tDELIVERY\tSTATUS\tSTEP\tUNITS ADDED\tDURATION")
	for _, r := range runs {
		step := "-"
		if r.FailedStep != "" {
			step = string(r.FailedStep)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format(time.RFC822), r.ID, r.App, r.User, r.Delivery,
			r.Status, step, r.UnitsAdded, r.Duration().Round(time.Millisecond))
	}
	return out.Flush()
}
