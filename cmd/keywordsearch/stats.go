package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics of the saved index snapshot",
	Args:  cobra.NoArgs,
	RunE:  statsCmdRun,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func statsCmdRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	exec, closeFn, err := openExecutor(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := exec.Stats()
	if err != nil {
		return err
	}
	return render(cmd, stats,
		[]string{"Documents", "Terms", "Avg Doc Length"},
		[][]string{{
			strconv.Itoa(stats.Documents),
			strconv.Itoa(stats.Terms),
			strconv.FormatFloat(stats.AvgDocLength, 'f', 2, 64),
		}},
	)
}
