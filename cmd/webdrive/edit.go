package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/webdrive/internal/dashboard"
	"github.com/fruitsalade/webdrive/pkg/client"
	"github.com/fruitsalade/webdrive/pkg/format"
	"github.com/fruitsalade/webdrive/pkg/models"
)

var (
	uploadTo string

	sharePermission string
	sharePassword   string
	shareDays       int
	shareNoDownload bool

	openPassword string
)

var starCmd = &cobra.Command{
	Use:   "star <path>",
	Short: "Star or unstar an item",
	Long:  "Toggle the star of an item. Stars are kept on this machine for the logged in user.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locate(ctx, s, args[0])
			if err != nil {
				return err
			}
			_, starred, err := s.ToggleStar(it)
			if err != nil {
				return err
			}
			if starred {
				fmt.Printf("Starred %s\n", it.Name)
			} else {
				fmt.Printf("Unstarred %s\n", it.Name)
			}
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			dir, name := path.Split(strings.Trim(args[0], "/"))
			if _, err := s.Walk(ctx, dir); err != nil {
				return err
			}
			l, err := s.CreateFolder(ctx, name)
			if err != nil {
				return err
			}
			printListing(os.Stdout, l)
			return nil
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file-or-dir>...",
	Short: "Upload files or directories",
	Long:  "Upload local files into a folder. A directory becomes a folder holding all the files beneath it.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Move an item to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locate(ctx, s, args[0])
			if err != nil {
				return err
			}
			if _, err := s.Delete(ctx, it); err != nil {
				return err
			}
			fmt.Printf("Moved %s to the trash\n", it.Name)
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <name-or-id>",
	Short: "Restore an item from the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locateTrash(ctx, s, args[0])
			if err != nil {
				return err
			}
			if _, err := s.Restore(ctx, it); err != nil {
				return err
			}
			fmt.Printf("Restored %s\n", it.Name)
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge <name-or-id>",
	Short: "Delete a trashed item for good",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locateTrash(ctx, s, args[0])
			if err != nil {
				return err
			}
			if _, err := s.PermanentDelete(ctx, it); err != nil {
				return err
			}
			fmt.Printf("Deleted %s permanently\n", it.Name)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locate(ctx, s, args[0])
			if err != nil {
				return err
			}
			l, err := s.Rename(ctx, it, args[1])
			if err != nil {
				return err
			}
			printListing(os.Stdout, l)
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <path> <folder>",
	Short: "Move an item into a folder (\"/\" for root)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locate(ctx, s, args[0])
			if err != nil {
				return err
			}
			dest, err := s.Walk(ctx, args[1])
			if err != nil {
				return err
			}
			l, err := s.Move(ctx, it, dest.Folder)
			if err != nil {
				return err
			}
			printListing(os.Stdout, l)
			return nil
		})
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <path>",
	Short: "Create a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := dashboard.ShareOptions{
			Permission:    dashboard.Permission(sharePermission),
			Password:      sharePassword,
			ExpiresInDays: shareDays,
		}
		if shareNoDownload {
			no := false
			opts.AllowDownload = &no
		}
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			it, err := locate(ctx, s, args[0])
			if err != nil {
				return err
			}
			sh, err := s.Share(ctx, it, opts)
			if err != nil {
				return err
			}
			printShares(os.Stdout, []models.Share{sh})
			return nil
		})
	},
}

var sharesCmd = &cobra.Command{
	Use:   "shares",
	Short: "List my share links",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			shares, err := s.MyShares(ctx)
			if err != nil {
				return err
			}
			printShares(os.Stdout, shares)
			return nil
		})
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare <share-id>",
	Short: "Revoke a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			shares, err := s.MyShares(ctx)
			if err != nil {
				return err
			}
			for _, sh := range shares {
				if sh.ID == args[0] || sh.Token == args[0] {
					if err := s.RevokeShare(ctx, sh); err != nil {
						return err
					}
					fmt.Printf("Revoked %s\n", sh.ID)
					return nil
				}
			}
			return fmt.Errorf("%w: share %q", dashboard.ErrNotFound, args[0])
		})
	},
}

var openCmd = &cobra.Command{
	Use:   "open <token>",
	Short: "Show the item behind a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			sh, it, err := s.OpenShared(ctx, args[0], openPassword)
			if err != nil {
				return err
			}
			printShares(os.Stdout, []models.Share{sh})
			printItems(os.Stdout, []models.Item{it}, false)
			return nil
		})
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Show storage usage",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var planCmd = &cobra.Command{
	Use:   "plan <free|pro|business>",
	Short: "Remember the plan when the backend does not report one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
			plan, err := s.SetPlan(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Plan set to %s\n", plan)
			return nil
		})
	},
}

func init() {
	uploadCmd.Flags().StringVar(&uploadTo, "to", "", "destination folder path")

	shareCmd.Flags().StringVar(&sharePermission, "permission", "view", "view or edit")
	shareCmd.Flags().StringVar(&sharePassword, "password", "", "protect the link with a password")
	shareCmd.Flags().IntVar(&shareDays, "days", dashboard.DefaultShareDays, "days until the link expires")
	shareCmd.Flags().BoolVar(&shareNoDownload, "no-download", false, "disallow downloads of a shared file")

	openCmd.Flags().StringVar(&openPassword, "password", "", "share password")
}

func runUpload(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), func(ctx context.Context, s *dashboard.Session) error {
		if _, err := s.Walk(ctx, uploadTo); err != nil {
			return err
		}
		l, err := uploadPaths(ctx, s, args, printProgress)
		fmt.Fprintln(os.Stderr)
		printListing(os.Stdout, l)
		return err
	})
}

// uploadPaths uploads local files and directories into the browsed folder.
func uploadPaths(ctx context.Context, s *dashboard.Session, paths []string, progress client.Progress) (dashboard.Listing, error) {
	var (
		files   []client.UploadFile
		entries []dashboard.FolderEntry
		closers []io.Closer
	)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return s.Current(), err
		}
		if !info.IsDir() {
			f, err := os.Open(p)
			if err != nil {
				return s.Current(), err
			}
			closers = append(closers, f)
			files = append(files, client.UploadFile{Name: filepath.Base(p), Content: f})
			continue
		}

		base := filepath.Dir(filepath.Clean(p))
		err = filepath.WalkDir(p, func(fp string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(base, fp)
			if err != nil {
				return err
			}
			f, err := os.Open(fp)
			if err != nil {
				return err
			}
			closers = append(closers, f)
			entries = append(entries, dashboard.FolderEntry{Path: filepath.ToSlash(rel), Content: f})
			return nil
		})
		if err != nil {
			return s.Current(), err
		}
	}

	var errs []error
	l := s.Current()
	if len(files) > 0 {
		var err error
		if l, err = s.Upload(ctx, files, progress); err != nil {
			errs = append(errs, err)
		}
	}
	if len(entries) > 0 {
		var err error
		if l, err = s.UploadFolder(ctx, entries, progress); err != nil {
			errs = append(errs, err)
		}
	}
	return l, errors.Join(errs...)
}

func printProgress(sent, total int64) {
	fmt.Fprintf(os.Stderr, "\r  %s of %s", format.Bytes(sent), format.Bytes(total))
}
