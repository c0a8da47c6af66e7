// Command webdrive browses a cloud drive from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fruitsalade/webdrive/internal/config"
	"github.com/fruitsalade/webdrive/internal/dashboard"
	"github.com/fruitsalade/webdrive/internal/logging"
	"github.com/fruitsalade/webdrive/pkg/client"
	"github.com/fruitsalade/webdrive/pkg/localstore"
	"github.com/fruitsalade/webdrive/pkg/models"
	"github.com/fruitsalade/webdrive/pkg/retry"
)

var (
	flagAPIURL   string
	flagStateDir string
	flagVerbose  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "webdrive",
	Short:         "Browse a cloud drive from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if flagAPIURL != "" {
			cfg.APIURL = flagAPIURL
		}
		if flagStateDir != "" {
			cfg.StateDir = flagStateDir
		}
		if flagVerbose {
			cfg.LogLevel = "debug"
		}
		return logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: cfg.LogOutput})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "API root (default from WEBDRIVE_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "directory for the token and local state")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(lsCmd, trashCmd, starredCmd, recentCmd, sharedCmd, searchCmd)
	rootCmd.AddCommand(starCmd, mkdirCmd, uploadCmd, rmCmd, restoreCmd, purgeCmd, renameCmd, mvCmd)
	rootCmd.AddCommand(shareCmd, sharesCmd, unshareCmd, openCmd)
	rootCmd.AddCommand(storageCmd, planCmd, shellCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe returns the message a user should see for err.
func describe(err error) string {
	if ae, ok := client.AsAPIError(err); ok && errors.Is(err, dashboard.ErrLoadFailed) {
		return fmt.Sprintf("%s: %s", dashboard.ErrLoadFailed, ae.Message)
	}
	return err.Error()
}

func tokenPath() string {
	return client.TokenFilePath(cfg.StateDir)
}

// newClient builds an API client carrying the saved token, if it is still
// usable.
func newClient() *client.Client {
	c := client.New(client.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		Retry:   retry.DefaultPolicy().WithAttempts(cfg.RetryAttempts),
		Token:   cfg.Token,
	})
	if cfg.Token == "" {
		if tf, err := client.LoadToken(tokenPath()); err == nil && (tf.ExpiresAt.IsZero() || !tf.IsExpired(time.Minute)) {
			c.SetToken(tf.Token)
		}
	}
	c.OnUnauthorized(func() {
		logging.Warn("token rejected, removing saved token")
		_ = client.DeleteToken(tokenPath())
	})
	return c
}

// openSession connects and starts a dashboard session for the logged in
// user.
func openSession(ctx context.Context) (*dashboard.Session, error) {
	c := newClient()
	if c.Token() == "" {
		return nil, errors.New("not logged in, run 'webdrive login'")
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("backend unreachable at %s: %w", c.BaseURL(), err)
	}

	user, err := currentUser(ctx, c)
	if err != nil {
		return nil, err
	}

	store, err := localstore.Open(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	return dashboard.New(c, store, user, dashboard.Options{PageLimit: cfg.PageLimit, RecentLimit: cfg.RecentLimit})
}

// currentUser asks the backend, falling back to the identity saved at login
// so the local state stays reachable.
func currentUser(ctx context.Context, c *client.Client) (models.User, error) {
	u, err := c.CurrentUser(ctx)
	if err == nil {
		return *u, nil
	}
	if client.IsUnauthorized(err) {
		return models.User{}, fmt.Errorf("session expired, run 'webdrive login': %w", err)
	}
	if tf, terr := client.LoadToken(tokenPath()); terr == nil && tf.UserID != "" {
		logging.Warn("using saved identity", logging.Err(err))
		return models.User{ID: tf.UserID, Email: tf.Email}, nil
	}
	if sub := client.TokenSubject(c.Token()); sub != "" {
		return models.User{ID: sub}, nil
	}
	return models.User{}, err
}

// locate resolves "dir/name" to an item of the live hierarchy.
func locate(ctx context.Context, s *dashboard.Session, ref string) (models.Item, error) {
	ref = strings.Trim(ref, "/")
	dir, name := path.Split(ref)
	if _, err := s.Walk(ctx, dir); err != nil {
		return models.Item{}, err
	}
	return s.Find(name)
}

// locateTrash resolves a name or id among the trashed items.
func locateTrash(ctx context.Context, s *dashboard.Session, ref string) (models.Item, error) {
	if _, err := s.LoadTrash(ctx); err != nil {
		return models.Item{}, err
	}
	return s.Find(ref)
}
