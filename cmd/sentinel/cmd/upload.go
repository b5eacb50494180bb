package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ashley-ai/sentinel/upload"
)

var errUploadRejected = errors.New("one or more files were rejected")

var (
	uploadMIME    string
	uploadProfile string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "File upload validation tools",
}

var uploadValidateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Validate files against an upload profile and print the results as JSON",
	Long: `Validate local files the way the upload endpoint would. The declared MIME
type is taken from --mime or, when unset, from each file's extension.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ok := upload.Profile(uploadProfile)
		if !ok {
			return fmt.Errorf("unknown profile %q", uploadProfile)
		}
		files, err := readUploads(args, uploadMIME, cfg.MaxSize)
		if err != nil {
			return err
		}
		return validateUploads(cmd.Context(), cmd.OutOrStdout(), upload.NewValidator(), files, cfg)
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.AddCommand(uploadValidateCmd)
	uploadValidateCmd.Flags().StringVar(&uploadMIME, "mime", "", "Declared MIME type for every file")
	uploadValidateCmd.Flags().StringVar(&uploadProfile, "profile", "document", "Upload profile: image or document")
}

// readUploads loads each path, reading at most one byte past maxSize so an
// oversized file is reported rather than loaded in full.
func readUploads(paths []string, mimeType string, maxSize int64) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		mt := mimeType
		if mt == "" {
			mt = upload.MIMETypeFor(p)
		}
		files = append(files, upload.File{Name: filepath.Base(p), MIMEType: mt, Data: data})
	}
	return files, nil
}

func validateUploads(ctx context.Context, w io.Writer, v *upload.Validator, files []upload.File, cfg upload.Config) error {
	res := v.ValidateFiles(ctx, files, cfg)
	if err := printJSON(w, res); err != nil {
		return err
	}
	if !res.Valid {
		return errUploadRejected
	}
	return nil
}
