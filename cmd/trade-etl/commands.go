package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tradeetl/internal/config"
	"tradeetl/internal/etl"
	"tradeetl/internal/store"
	"tradeetl/internal/util"
	"tradeetl/internal/watermark"
)

const defaultConfigPath = "config/tradeetl.yaml"

func configPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if p := os.Getenv("TRADEETL_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// session holds everything a command needs; close releases the stores.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	job    *etl.Job
	closer []io.Closer
}

func (s *session) close() {
	for _, c := range s.closer {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing store", "error", err)
		}
	}
}

func openSession(args []string) (*session, error) {
	cfg, err := config.Load(configPath(args))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	s := &session{cfg: cfg, logger: logger}
	open := func(c config.Store) (store.TabularStore, error) {
		st, closer, err := store.Open(c, logger)
		if err != nil {
			return nil, err
		}
		s.closer = append(s.closer, closer)
		return st, nil
	}

	src, err := open(cfg.Source.Store)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("source store: %w", err)
	}
	trg, err := open(cfg.Target.Store)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("target store: %w", err)
	}
	meta, err := open(cfg.Meta.Store)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("meta store: %w", err)
	}

	s.job, err = etl.NewJob(cfg, src, trg, meta, logger)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [config]",
		Short: "Extract pending dates, write the report and update the watermark log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.job.Run(cmd.Context())
			if err != nil {
				return err
			}
			if res.TargetKey != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", res.Written, res.TargetKey)
			}
			return nil
		},
	}
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [config]",
		Short: "Print the dates the next run would process",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.job.Plan(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "min_date: %s\n", res.MinDate)
			if res.Empty() {
				fmt.Fprintln(out, "nothing to process")
				return nil
			}
			fmt.Fprintf(out, "dates (%d): %s\n", len(res.Dates), strings.Join(util.FormatDates(res.Dates), " "))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [config]",
		Short: "Print the watermark log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}
			defer s.close()

			entries, err := watermark.Entries(cmd.Context(), s.job.Meta, s.job.MetaKey)
			out := cmd.OutOrStdout()
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(out, "no watermark log at %s\n", s.job.MetaKey)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-12s %s\n", watermark.SourceDateColumn, watermark.ProcessedAtColumn)
			for _, e := range entries {
				fmt.Fprintf(out, "%-12s %s\n", e.SourceDate, e.ProcessedAt.Format(watermark.ProcessedAtLayout))
			}
			return nil
		},
	}
}
