package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashley-ai/sentinel/password"
)

var errPasswordRejected = errors.New("password rejected")

var (
	checkBreach   bool
	checkJSON     bool
	generateLen   int
	generateCount int
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Password policy tools",
	Long: `Assess, hash, breach-check and generate passwords. Commands that take a
password read it from the first argument or, when none is given, from the
first line of standard input.`,
}

var passwordCheckCmd = &cobra.Command{
	Use:   "check [password]",
	Short: "Assess a password against the configured policy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pw, err := readSecret(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		var breach *password.BreachChecker
		if checkBreach {
			breach = password.NewBreachChecker(password.WithBaseURL(cfg.Breach.BaseURL))
		}
		return checkPassword(cmd.Context(), cmd.OutOrStdout(), pw, cfg.Password, breach, checkJSON)
	},
}

var passwordHashCmd = &cobra.Command{
	Use:   "hash [password]",
	Short: "Print the bcrypt hash of a password for the users section of the config",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readSecret(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		h, err := password.Hash(pw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

var passwordPwnedCmd = &cobra.Command{
	Use:   "pwned [password]",
	Short: "Look a password up in the breach corpus",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pw, err := readSecret(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		b := password.NewBreachChecker(password.WithBaseURL(cfg.Breach.BaseURL))
		return reportBreach(cmd.OutOrStdout(), b.Check(cmd.Context(), pw))
	},
}

var passwordGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate random passwords that satisfy the default policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for range max(generateCount, 1) {
			pw, err := password.Generate(generateLen)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwordCmd)
	passwordCmd.AddCommand(passwordCheckCmd, passwordHashCmd, passwordPwnedCmd, passwordGenerateCmd)

	passwordCheckCmd.Flags().BoolVar(&checkBreach, "breach", false, "Also look the password up in the breach corpus")
	passwordCheckCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the assessment as JSON")
	passwordGenerateCmd.Flags().IntVarP(&generateLen, "length", "l", password.DefaultGeneratedLength, "Password length")
	passwordGenerateCmd.Flags().IntVarP(&generateCount, "count", "n", 1, "How many passwords to print")
}

func readSecret(in io.Reader, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given")
	}
	return line, nil
}

type checkOutput struct {
	password.Assessment
	Breach *password.BreachResult `json:"breach,omitempty"`
}

// checkPassword prints the assessment of pw and returns errPasswordRejected
// when it fails the policy or is known to be breached.
func checkPassword(ctx context.Context, w io.Writer, pw string, req password.Requirements, breach *password.BreachChecker, asJSON bool) error {
	out := checkOutput{Assessment: password.Validate(pw, req)}
	if breach != nil {
		br := breach.Check(ctx, pw)
		out.Breach = &br
		if br.Pwned {
			out.Valid = false
			out.Errors = append(out.Errors, password.MsgBreached)
		}
	}

	if asJSON {
		if err := printJSON(w, out); err != nil {
			return err
		}
	} else {
		for _, line := range password.Feedback(out.Assessment) {
			fmt.Fprintln(w, line)
		}
		if out.Breach != nil && !out.Breach.Checked {
			fmt.Fprintln(w, "  ! Breach check unavailable")
		}
	}
	if !out.Valid {
		return errPasswordRejected
	}
	return nil
}

func reportBreach(w io.Writer, res password.BreachResult) error {
	switch {
	case !res.Checked:
		return errors.New("breach check unavailable")
	case res.Pwned:
		fmt.Fprintf(w, "Found in %d breach record(s)\n", res.Count)
		return errPasswordRejected
	default:
		fmt.Fprintln(w, "Not found in the breach corpus")
		return nil
	}
}
