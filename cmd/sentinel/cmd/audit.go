package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashley-ai/sentinel/audit"
)

// cliRequestInfo marks audit records written by maintenance commands.
var cliRequestInfo = audit.RequestInfo{IPAddress: "local", UserAgent: "sentinel-cli/" + Version}

var (
	auditDays     int
	auditUser     string
	auditActions  []string
	auditSeverity string
	auditResource string
	auditSince    time.Duration
	auditLimit    int
	auditOffset   int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log maintenance and inspection",
	Long:  `Commands for pruning, summarising and querying the audit log.`,
}

var auditCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete non-critical records older than --days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openForMaintenance(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		days := auditDays
		if !cmd.Flags().Changed("days") {
			days = svc.cfg.Audit.RetentionDays
		}
		n, err := svc.audit.Cleanup(cmd.Context(), days)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit record(s) older than %d day(s)\n", n, days)
		return nil
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print audit statistics for the trailing --days as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openForMaintenance(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		st, err := svc.audit.Statistics(cmd.Context(), auditDays)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print matching audit records, newest first, as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := auditFilterFromFlags(time.Now())
		if err != nil {
			return err
		}

		svc, err := openForMaintenance(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		records, err := svc.audit.Query(cmd.Context(), f)
		if err != nil {
			return err
		}
		if records == nil {
			records = []audit.Record{}
		}
		return printJSON(cmd.OutOrStdout(), records)
	},
}

func auditFilterFromFlags(now time.Time) (audit.Filter, error) {
	f := audit.Filter{
		UserID:   auditUser,
		Resource: auditResource,
		Severity: audit.Severity(strings.ToUpper(auditSeverity)),
		Limit:    auditLimit,
		Offset:   auditOffset,
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return f, fmt.Errorf("unknown severity %q", auditSeverity)
	}
	for _, a := range auditActions {
		f.Actions = append(f.Actions, audit.Action(strings.ToUpper(a)))
	}
	if auditSince > 0 {
		f.Start = now.Add(-auditSince)
	}
	return f, nil
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditCleanupCmd, auditStatsCmd, auditQueryCmd)

	auditCleanupCmd.Flags().IntVar(&auditDays, "days", audit.DefaultRetentionDays, "Retention in days")
	auditStatsCmd.Flags().IntVar(&auditDays, "days", audit.DefaultStatsDays, "Trailing window in days")

	qf := auditQueryCmd.Flags()
	qf.StringVar(&auditUser, "user", "", "Only records of this user id")
	qf.StringSliceVar(&auditActions, "action", nil, "Only these actions (repeatable)")
	qf.StringVar(&auditSeverity, "severity", "", "Only this severity")
	qf.StringVar(&auditResource, "resource", "", "Only this resource type")
	qf.DurationVar(&auditSince, "since", 0, "Only records newer than this, e.g. 24h")
	qf.IntVar(&auditLimit, "limit", audit.DefaultQueryLimit, "Maximum records to print")
	qf.IntVar(&auditOffset, "offset", 0, "Records to skip")
}
