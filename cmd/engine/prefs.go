package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/secrets"
	"jobintel-engine/internal/store"
)

func newPrefsCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage user matching preferences",
	}
	cmd.AddCommand(newPrefsSetCmd(gf), newPrefsGetCmd(gf), newPrefsDeleteCmd(gf))
	return cmd
}

func newPrefsSetCmd(gf *globalFlags) *cobra.Command {
	var (
		p         domain.Preference
		location  string
		salaryMin int
		salaryMax int
		frequency string
	)

	cmd := &cobra.Command{
		Use:   "set <user>",
		Short: "Store a user's preference, replacing any previous one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			p.UserID = args[0]
			if cmd.Flags().Changed("location") {
				p.Location = &location
			}
			if cmd.Flags().Changed("salary-min") {
				p.SalaryMin = domain.IntPtr(salaryMin)
			}
			if cmd.Flags().Changed("salary-max") {
				p.SalaryMax = domain.IntPtr(salaryMax)
			}
			p.NotificationFrequency = domain.NotificationFrequency(strings.ToLower(strings.TrimSpace(frequency)))
			if err := p.Validate(); err != nil {
				return fmt.Errorf("invalid preference: %w", err)
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.PutPreference(ctx, p, time.Now()); err != nil {
				return err
			}
			if a.json {
				return a.printJSON(p)
			}
			fmt.Fprintf(a.out, "stored preference for %s\n", p.UserID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&p.Keywords, "keywords", nil, "keywords to match (comma separated)")
	f.StringSliceVar(&p.ExcludedKeywords, "exclude", nil, "keywords that disqualify a posting")
	f.StringVar(&location, "location", "", "preferred location")
	f.IntVar(&salaryMin, "salary-min", 0, "minimum acceptable salary")
	f.IntVar(&salaryMax, "salary-max", 0, "maximum expected salary")
	f.BoolVar(&p.RemoteOnly, "remote-only", false, "only remote postings")
	f.StringSliceVar(&p.JobTypes, "job-types", nil, "accepted job types, e.g. full-time,contract")
	f.StringVar(&frequency, "frequency", string(domain.NotifyDaily), "notification frequency: realtime, daily or weekly")
	return cmd
}

func newPrefsGetCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user>",
		Short: "Print a user's stored preference as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.GetPreference(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w for user %s", errNoPreference, args[0])
			}
			if err != nil {
				return err
			}
			return a.printJSON(p)
		},
	}
}

func newPrefsDeleteCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user>",
		Short: "Delete a user's stored preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.DeletePreference(ctx, args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w for user %s", errNoPreference, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted preference for %s\n", args[0])
			return nil
		},
	}
}

func newSecretsCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage feed basic-auth passwords in the OS keychain",
	}
	cmd.AddCommand(newSecretsSetCmd(gf), newSecretsDeleteCmd(gf))
	return cmd
}

// authUser is --user, falling back to the source's configured auth_user.
func authUser(a *app, source, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if s, ok := a.source(source); ok && s.AuthUser != "" {
		return s.AuthUser, nil
	}
	return "", fmt.Errorf("source %s has no auth_user; pass --user", source)
}

func newSecretsSetCmd(gf *globalFlags) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "set <source>",
		Short: "Store a feed password read from the first line of stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			u, err := authUser(a, args[0], user)
			if err != nil {
				return err
			}
			pw, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := secrets.SetFeedPassword(args[0], u, pw); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "stored password for %s (%s)\n", args[0], u)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "basic-auth user (defaults to the source's auth_user)")
	return cmd
}

func newSecretsDeleteCmd(gf *globalFlags) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "delete <source>",
		Short: "Remove a stored feed password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, gf)
			if err != nil {
				return err
			}
			u, err := authUser(a, args[0], user)
			if err != nil {
				return err
			}
			if err := secrets.DeleteFeedPassword(args[0], u); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted password for %s (%s)\n", args[0], u)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "basic-auth user (defaults to the source's auth_user)")
	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
