package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func newLoginCmd(state *cliState) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				password, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password")
				if err != nil {
					return err
				}
			}
			user, err := state.app.Auth.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newRegisterCmd(state *cliState) *cobra.Command {
	var input domain.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input.Password == "" {
				var err error
				input.Password, err = readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password")
				if err != nil {
					return err
				}
			}
			user, err := state.app.Auth.Register(cmd.Context(), input)
			if err != nil {
				return err
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created, logged in\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "email address")
	cmd.Flags().StringVarP(&input.Username, "username", "u", "", "username, at least 3 characters")
	cmd.Flags().StringVarP(&input.Password, "password", "p", "", "password, at least 6 characters (read from stdin when empty)")
	cmd.Flags().StringVar(&input.FullName, "full-name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := state.app.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Verify the stored session with the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !state.app.Auth.IsAuthenticated(cmd.Context()) {
				return domain.ErrNotAuthenticated
			}
			user := state.app.Auth.Check(cmd.Context())
			if user == nil {
				return domain.WrapError(domain.ErrNotAuthenticated, "whoami", fmt.Errorf("session rejected by server"))
			}
			if state.jsonOutput {
				return state.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", user.Username, user.Email)
			return nil
		},
	}
}

func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	fmt.Fprintf(prompt, "%s: ", label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "read "+strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
