package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmail/backend/internal/client"
	"github.com/vmail/backend/internal/config"
	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/models"
	"github.com/vmail/backend/internal/session"
)

var (
	// ErrNoSession is returned by commands that need a signed-in friend.
	ErrNoSession   = errors.New("not signed in: run `vmail login` first")
	errInvalidCode = errors.New(client.InvalidCodeMessage)
)

// clientEnv is what the friend-facing commands share: an API client and an
// auth Context hydrated from the session file.
type clientEnv struct {
	cfg    config.Config
	logger *slog.Logger
	api    *client.API
	auth   *session.Context
}

func (c *cli) clientEnv() (*clientEnv, error) {
	cfg, logger, err := c.load()
	if err != nil {
		return nil, err
	}

	path := cfg.Client.SessionFile
	if path == "" {
		if path, err = session.DefaultSessionFile(); err != nil {
			return nil, err
		}
	}

	auth := session.NewContext(session.NewStore(session.NewFileKV(path)), nil)
	auth.Hydrate()

	return &clientEnv{
		cfg:    cfg,
		logger: logger,
		api:    client.New(cfg.Client.BaseURL, cfg.Client.Timeout),
		auth:   auth,
	}, nil
}

// requireSession applies the dashboard guard to protected commands.
func (e *clientEnv) requireSession() (models.Session, error) {
	if e.auth.Guard(session.DashboardRoute) {
		return models.Session{}, ErrNoSession
	}
	current, _ := e.auth.Session()
	return current, nil
}

func (e *clientEnv) findMessage(ctx context.Context, recipientID, messageID string) (models.Message, error) {
	messages, err := e.api.ListMessages(ctx, recipientID)
	if err != nil {
		return models.Message{}, err
	}
	for _, m := range messages {
		if m.ID == messageID {
			return m, nil
		}
	}
	return models.Message{}, fmt.Errorf("message %s is not in your inbox", messageID)
}

func (c *cli) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [access-code]",
		Short: "Sign in with your access code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.clientEnv()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), env.logger)
			out := cmd.OutOrStdout()

			if current, ok := env.auth.Session(); ok {
				fmt.Fprintf(out, "Already signed in as %s\n", current.Name)
				return nil
			}

			form := client.NewLoginForm(env.api, func(s models.Session) error {
				return env.auth.Login(s.ID, s.Name)
			})

			if len(args) == 1 {
				friend, err := form.Submit(ctx, args[0])
				if err != nil {
					return err
				}
				if friend == nil {
					return errInvalidCode
				}
				fmt.Fprintf(out, "Welcome, %s\n", friend.Name)
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "Access Code: ")
				if !scanner.Scan() {
					if err := scanner.Err(); err != nil {
						return err
					}
					return errInvalidCode
				}
				friend, err := form.Submit(ctx, scanner.Text())
				if err != nil {
					return err
				}
				if friend != nil {
					fmt.Fprintf(out, "Welcome, %s\n", friend.Name)
					return nil
				}
				if msg := form.Error(); msg != "" {
					fmt.Fprintln(out, msg)
				}
				form.Retry()
			}
		},
	}
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.clientEnv()
			if err != nil {
				return err
			}
			if err := env.auth.Logout(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (c *cli) inboxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "List your video messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.clientEnv()
			if err != nil {
				return err
			}
			current, err := env.requireSession()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), env.logger)

			messages, err := env.api.ListMessages(ctx, current.ID)
			if err != nil {
				return err
			}
			printInbox(cmd.OutOrStdout(), current, messages)
			return nil
		},
	}
}

func printInbox(w io.Writer, current models.Session, messages []models.Message) {
	fmt.Fprintf(w, "Welcome, %s\n", current.Name)
	if len(messages) == 0 {
		fmt.Fprintln(w, "No messages yet")
		fmt.Fprintln(w, "Joshua hasn't sent you any video messages yet. Check back soon!")
		return
	}

	unviewed := models.Unviewed(messages)
	plural := "s"
	if unviewed == 1 {
		plural = ""
	}
	fmt.Fprintf(w, "You have %d new message%s from Joshua\n", unviewed, plural)
	for _, m := range messages {
		badge := "New"
		if m.Viewed {
			badge = "Viewed"
		}
		fmt.Fprintf(w, "  [%-6s] %s  %s\n", badge, m.ID, m.Title)
	}
}

func (c *cli) watchCommand() *cobra.Command {
	var noMark bool

	cmd := &cobra.Command{
		Use:   "watch <message-id>",
		Short: "Print a fresh playback URL for a message and mark it viewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.clientEnv()
			if err != nil {
				return err
			}
			current, err := env.requireSession()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), env.logger)
			out := cmd.OutOrStdout()

			message, err := env.findMessage(ctx, current.ID, args[0])
			if err != nil {
				return err
			}

			player := client.NewPlayer(env.api, func(ctx context.Context, m models.Message) {
				if noMark {
					return
				}
				// A failed view update never interrupts watching.
				if err := env.api.MarkViewed(ctx, current.ID, m.ID); err != nil {
					logging.FromContext(ctx).Warn("failed to mark as viewed", "messageId", m.ID, "error", err)
				}
			})
			defer player.Close()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			err = player.Open(ctx, message)
			for err != nil {
				fmt.Fprintln(out, player.ErrorMessage())
				fmt.Fprint(out, "Try Again? [y/N] ")
				if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
					return err
				}
				err = player.Retry(ctx)
			}

			fmt.Fprintf(out, "%s\n%s\n", message.Title, player.URL())
			player.Played(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noMark, "no-mark", false, "do not mark the message as viewed")
	return cmd
}

func (c *cli) downloadCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <message-id>",
		Short: "Save a message video to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.clientEnv()
			if err != nil {
				return err
			}
			current, err := env.requireSession()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), env.logger)

			message, err := env.findMessage(ctx, current.ID, args[0])
			if err != nil {
				return err
			}

			url, err := env.api.MintPlaybackURL(ctx, message.StorageRef, true, message.Title)
			if err != nil {
				return err
			}

			if output == "" {
				output = models.DownloadName(message.Title)
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}

			n, err := env.api.Fetch(ctx, url, file)
			if closeErr := file.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (defaults to <title>.mp4)")
	return cmd
}
