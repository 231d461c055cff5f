package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/server/config"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// minPasswordLength matches what the registration endpoint accepts.
const minPasswordLength = 5

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type rootOptions struct {
	configFile string
	dsn        string
}

// NewRootCommand builds the recipekeeper-admin command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "recipekeeper-admin",
		Short:         "Administrative tasks for the recipekeeper server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML or JSON config file")
	root.PersistentFlags().StringVarP(&opts.dsn, "dsn", "d", "", "Database DSN, overrides the config")

	root.AddCommand(
		newMigrateCmd(opts),
		newCreateSuperuserCmd(opts),
		newCreateUserCmd(opts),
		newChangePasswordCmd(opts),
	)
	return root
}

// Execute runs the command tree with os.Args and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *rootOptions) open(ctx context.Context) (Backend, error) {
	cfg, err := config.Build(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.dsn != "" {
		cfg.DatabaseDSN = o.dsn
	}
	return openBackend(ctx, cfg)
}

// withBackend opens the backend, runs fn and closes the backend again.
func (o *rootOptions) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(ctx, b)
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, b Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	}
}

type accountFlags struct {
	email    string
	password string
	noInput  bool
}

func (f *accountFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Email address of the account")
	cmd.Flags().StringVar(&f.password, "password", "", "Password (prompted for when omitted)")
	cmd.Flags().BoolVar(&f.noInput, "no-input", false, "Fail instead of prompting for missing values")
}

// resolve fills email and password from the terminal when they were not
// given as flags.
func (f *accountFlags) resolve(cmd *cobra.Command) (string, string, error) {
	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	email := strings.TrimSpace(f.email)
	if email == "" {
		if f.noInput {
			return "", "", errors.New("--email is required with --no-input")
		}
		var err error
		if email, err = prompt(in, out, "Email address: "); err != nil {
			return "", "", err
		}
	}

	password := f.password
	if password == "" {
		if f.noInput {
			return "", "", errors.New("--password is required with --no-input")
		}
		var err error
		if password, err = promptNewPassword(out); err != nil {
			return "", "", err
		}
	}
	if len([]rune(password)) < minPasswordLength {
		return "", "", fmt.Errorf("password must have at least %d characters", minPasswordLength)
	}

	return email, password, nil
}

func newCreateSuperuserCmd(opts *rootOptions) *cobra.Command {
	var f accountFlags
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an active staff account with every permission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			return opts.withBackend(cmd, func(ctx context.Context, b Backend) error {
				u, err := b.CreateSuperuser(ctx, email, password)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created successfully.\n", u.Email)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newCreateUserCmd(opts *rootOptions) *cobra.Command {
	var (
		f     accountFlags
		name  string
		staff bool
	)
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a regular account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			fields := &services.UserFields{Name: name}
			if staff {
				fields.IsStaff = &staff
			}
			return opts.withBackend(cmd, func(ctx context.Context, b Backend) error {
				u, err := b.CreateUser(ctx, email, password, fields)
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s created successfully.\n", u.Email)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&staff, "staff", false, "Mark the account as staff")
	return cmd
}

func newChangePasswordCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "changepassword EMAIL",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Changing password for user %s\n", args[0])

			password, err := promptNewPassword(out)
			if err != nil {
				return err
			}
			if len([]rune(password)) < minPasswordLength {
				return fmt.Errorf("password must have at least %d characters", minPasswordLength)
			}

			return opts.withBackend(cmd, func(ctx context.Context, b Backend) error {
				if err := b.SetPassword(ctx, args[0], password); err != nil {
					return describe(err)
				}
				fmt.Fprintf(out, "Password changed successfully for user %s.\n", args[0])
				return nil
			})
		},
	}
}

// describe turns service errors into messages for the operator.
func describe(err error) error {
	switch {
	case errors.Is(err, common.ErrUniqueViolation):
		return errors.New("that email address is already taken")
	case errors.Is(err, common.ErrorNotFound):
		return errors.New("user does not exist")
	default:
		return err
	}
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	if _, err := fmt.Fprint(out, label); err != nil {
		return "", err
	}
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptNewPassword reads a password twice without echo.
func promptNewPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(first)

	fmt.Fprint(out, "Password (again): ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("blank passwords are not allowed")
	}
	return string(first), nil
}
