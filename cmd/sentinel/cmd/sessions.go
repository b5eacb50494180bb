package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session maintenance",
	Long:  `Commands that operate directly on the configured session store.`,
}

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired sessions and long-revoked sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openForMaintenance(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		n, err := svc.sessions.CleanupExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d session(s)\n", n)
		return nil
	},
}

var sessionsRevokeUserCmd = &cobra.Command{
	Use:   "revoke-user <user-id>",
	Short: "Revoke every session of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openForMaintenance(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		n, err := svc.sessions.ForceLogout(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		svc.audit.SessionRevoked(cmd.Context(), "cli", "", n, cliRequestInfo)
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %d session(s) for %s\n", n, args[0])
		return nil
	},
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print session table statistics as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openForMaintenance(cmd)
		if err != nil {
			return err
		}
		defer svc.Close()

		st, err := svc.sessions.Stats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsCleanupCmd, sessionsRevokeUserCmd, sessionsStatsCmd)
}

// openForMaintenance opens the persistent stores named by the
// configuration. Maintenance against an in-memory backend would be
// meaningless.
func openForMaintenance(cmd *cobra.Command) (*services, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openServices(cmd.Context(), cfg, false)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
