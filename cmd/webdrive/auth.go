package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fruitsalade/webdrive/internal/dashboard"
	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/client"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the token",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session and forget the token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	email := loginEmail
	if email == "" {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password := os.Getenv("WEBDRIVE_PASSWORD")
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}

	creds := dashboard.Credentials{Email: email, Password: password}
	if err := creds.Validate(); err != nil {
		return err
	}

	c := newClient()
	res, err := c.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	tf := &client.TokenFile{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Server:    c.BaseURL(),
		UserID:    res.User.ID,
		Email:     res.User.Email,
	}
	if tf.UserID == "" {
		tf.UserID = client.TokenSubject(res.Token)
	}
	if tf.Email == "" {
		tf.Email = creds.Email
	}
	if err := client.SaveToken(tokenPath(), tf); err != nil {
		return err
	}

	logging.Info("logged in", logging.String("user", tf.UserID))
	fmt.Printf("Logged in as %s\n", tf.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	c := newClient()
	if c.Token() != "" {
		if err := c.Logout(cmd.Context()); err != nil {
			logging.Warn("logout request failed", logging.Err(err))
		}
	}
	if err := client.DeleteToken(tokenPath()); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
		acct, err := s.Account(ctx)
		if err != nil {
			return err
		}
		u := acct.User
		fmt.Printf("%s (%s)\n", u.Email, u.ID)
		fmt.Printf("Plan:    %s\n", acct.Plan)
		fmt.Printf("Storage: %s\n", storageLine(acct))
		return nil
	})
}

// withSession opens a session and runs fn with it.
func withSession(ctx context.Context, fn func(context.Context, *dashboard.Session) error) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, s)
}
