package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"social_auth/internal/app/service"
	"social_auth/internal/common"
	"social_auth/internal/common/security"
	"social_auth/internal/domain/model"
	"social_auth/internal/domain/repository"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type userCreator interface {
	CreateUser(ctx context.Context, req service.SignupRequest, role model.Role) (*model.User, error)
}

type createUserOptions struct {
	email    string
	username string
	name     string
	role     string
}

// NewCreateUserCmd creates the create-user subcommand. The password is read
// from the terminal without echo.
func NewCreateUserCmd() *cobra.Command {
	var opts createUserOptions
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision an account",
		Long: `Create an account directly in the database, typically the first admin.
The password is prompted for twice and never accepted as a flag.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateUser(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&opts.username, "username", "", "account username (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.role, "role", string(model.RoleAdmin), "account role")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func runCreateUser(cmd *cobra.Command, opts createUserOptions) error {
	password, err := promptPassword(cmd.OutOrStdout(), int(os.Stdin.Fd()))
	if err != nil {
		return err
	}

	rt, err := loadResources()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	if err := rt.openDB(ctx); err != nil {
		return err
	}

	hasher, err := security.NewBcryptHasher(rt.cfg.BcryptCost)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	authService, err := service.NewAuthService(service.AuthDeps{
		Users:  repository.NewPgUserRepository(rt.db),
		Hasher: hasher,
		Clock:  common.SystemClock{},
		Logger: rt.logger,
	})
	if err != nil {
		return oops.Code("AUTH_INIT_FAILED").Wrap(err)
	}

	return provisionUser(ctx, cmd.OutOrStdout(), authService, opts, password)
}

func provisionUser(ctx context.Context, w io.Writer, creator userCreator, opts createUserOptions, password string) error {
	user, err := creator.CreateUser(ctx, service.SignupRequest{
		Email:           opts.email,
		Username:        opts.username,
		Name:            opts.name,
		Password:        password,
		PasswordConfirm: password,
	}, model.Role(opts.role))
	if err != nil {
		var domainErr *common.Error
		if errors.As(err, &domainErr) {
			return errors.New(domainErr.Message)
		}
		return oops.Code("CREATE_USER_FAILED").With("username", opts.username).Wrap(err)
	}
	fmt.Fprintf(w, "Created %s %s (%s)\n", user.Role, user.Username, user.ID)
	return nil
}

// promptPassword reads a password and its confirmation from fd.
func promptPassword(w io.Writer, fd int) (string, error) {
	fmt.Fprint(w, "Enter password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(w, "Confirm password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(first), nil
}
