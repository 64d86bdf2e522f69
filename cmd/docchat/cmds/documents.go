package cmds

import (
	"fmt"

	"github.com/go-go-golems/docchat/pkg/documents"
	"github.com/go-go-golems/docchat/pkg/upload"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewDocumentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Manage the documents in your knowledge base",
	}
	cmd.AddCommand(newUploadCommand(), newListDocumentsCommand())
	return cmd
}

func newUploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload PDF, DOCX or plain text documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentType, _ := cmd.Flags().GetString("content-type")

			a, err := newApp()
			if err != nil {
				return err
			}
			controller := upload.NewController(a.client)

			failed := 0
			for _, path := range args {
				status, err := uploadFile(cmd, a, controller, path, contentType)
				if err != nil {
					failed++
					log.Debug().Err(err).Str("path", path).Msg("Upload failed")
					if status.Message == "" {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", path, err)
					}
				}
				if status.Message != "" {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), status.Message)
				}
			}

			if failed > 0 {
				return errors.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().String("content-type", "", "Declared content type, derived from the file extension by default")
	return cmd
}

func uploadFile(
	cmd *cobra.Command,
	a *app,
	controller *upload.Controller,
	path string,
	contentType string,
) (upload.Status, error) {
	file, closer, err := documents.Open(path)
	if err != nil {
		return upload.Status{}, err
	}
	defer func() {
		_ = closer.Close()
	}()
	if contentType != "" {
		file.ContentType = contentType
	}
	return controller.Upload(cmd.Context(), a.userID, *file)
}

func newListDocumentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			docs, err := a.client.ListDocuments(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			return a.printOutput(cmd.OutOrStdout(), docs)
		},
	}
}
