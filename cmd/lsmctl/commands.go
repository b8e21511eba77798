package main

import (
	"errors"
	"fmt"
	"log/slog"

	"lsmstore/pkg/record"
	"lsmstore/pkg/store"

	"github.com/spf13/cobra"
)

var errNotFound = errors.New("key not found")

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Add or update a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.Store) error {
				return s.PutString(args[0], args[1])
			})
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.Store) error {
				value, found, err := s.GetString(args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%q: %w", args[0], errNotFound)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.Store) error {
				return s.DeleteString(args[0])
			})
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	var (
		from, to string
		limit    int
	)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Print the key-value pairs in [from, to) in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.Store) error {
				out := cmd.OutOrStdout()
				return s.Scan(bound(from), bound(to), limit, func(rec record.Record) error {
					_, err := fmt.Fprintf(out, "%s\t%s\n", rec.Key(), rec.Value())
					return err
				})
			})
		},
	}

	scanCmd.Flags().StringVar(&from, "from", "", "inclusive lower bound, open when empty")
	scanCmd.Flags().StringVar(&to, "to", "", "exclusive upper bound, open when empty")
	scanCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of pairs to print, 0 for all")
	return scanCmd
}

// bound maps an empty flag to an open bound. Empty keys cannot be stored.
func bound(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func newCompactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Merge all segments into one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.Store) error {
				before := s.Stats()
				if err := s.Compact(); err != nil {
					return err
				}
				after := s.Stats()
				slog.Info("compaction finished",
					"segments_before", before.Segments,
					"bytes_before", before.DiskBytes,
					"bytes_after", after.DiskBytes,
				)
				printStats(cmd, after)
				return nil
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print segment and memtable statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s *store.Store) error {
				printStats(cmd, s.Stats())
				return nil
			})
		},
	}
}

func printStats(cmd *cobra.Command, st store.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "segments: %d\n", st.Segments)
	fmt.Fprintf(out, "generations: %v\n", st.Generations)
	fmt.Fprintf(out, "disk bytes: %d\n", st.DiskBytes)
	fmt.Fprintf(out, "memtable records: %d\n", st.MemtableRecords)
	fmt.Fprintf(out, "memtable bytes: %d\n", st.MemtableBytes)
}
