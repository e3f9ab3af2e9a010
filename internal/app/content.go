package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vmail/backend/internal/db"
	"github.com/vmail/backend/internal/logging"
	"github.com/vmail/backend/internal/models"
	"github.com/vmail/backend/internal/repositories"
	"github.com/vmail/backend/internal/storage"
)

// friendCommand covers the out-of-band creation of recipients.
func (c *cli) friendCommand() *cobra.Command {
	var name, code, verseText, verseRef string

	add := &cobra.Command{
		Use:   "add",
		Short: "Register a recipient and their access code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), logger)

			name, code = strings.TrimSpace(name), strings.TrimSpace(code)
			if name == "" || code == "" {
				return errors.New("--name and --code are required")
			}

			friend := models.Friend{ID: uuid.NewString(), Name: name, AccessCode: code}
			if verseText != "" {
				friend.Verse = &models.Verse{Text: verseText, Reference: verseRef}
			}

			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			err = repositories.NewPostgresFriendRepository(pool).Create(ctx, friend)
			if errors.Is(err, repositories.ErrConflict) {
				return fmt.Errorf("access code %q is already in use", code)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", friend.Name, friend.ID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&code, "code", "", "access code")
	add.Flags().StringVar(&verseText, "verse", "", "optional encouragement verse")
	add.Flags().StringVar(&verseRef, "verse-ref", "", "reference for --verse")

	cmd := &cobra.Command{
		Use:   "friend",
		Short: "Manage recipients",
	}
	cmd.AddCommand(add)
	return cmd
}

// sendCommand uploads a video and addresses it to the friend owning an access code.
func (c *cli) sendCommand() *cobra.Command {
	var to, title string

	cmd := &cobra.Command{
		Use:   "send <video-file>",
		Short: "Upload a video message for a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), logger)

			path := args[0]
			if strings.TrimSpace(title) == "" {
				title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			friend, err := repositories.NewPostgresFriendRepository(pool).FindByAccessCode(ctx, to)
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("no recipient uses access code %q", to)
			}
			if err != nil {
				return err
			}

			store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
			if err != nil {
				return err
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open video: %w", err)
			}
			defer file.Close()

			messageID := uuid.NewString()
			ref, err := store.Save(ctx, "messages/"+messageID+".mp4", file)
			if err != nil {
				return err
			}

			message := models.Message{ID: messageID, RecipientID: friend.ID, StorageRef: ref, Title: title}
			if err := repositories.NewPostgresMessageRepository(pool).Create(ctx, message); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %q to %s (%s)\n", title, friend.Name, messageID)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "access code of the recipient")
	cmd.Flags().StringVar(&title, "title", "", "message title (defaults to the file name)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
