// Package cmd holds the jbig2png subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pagebits/jbig2/internal/logging"
	"github.com/pagebits/jbig2/pkg/jbig2"
	"github.com/spf13/cobra"
)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	var logFile io.Closer
	cmd := &cobra.Command{
		Use:          "jbig2png",
		Short:        "decode JBIG2 images to PNG",
		Long:         "jbig2png decodes JBIG2 files and PDF-embedded JBIG2 streams to PNG.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logJSON, _ := cmd.Flags().GetBool("log-json")
			logPath, _ := cmd.Flags().GetString("log-file")

			var w io.Writer = cmd.ErrOrStderr()
			if logPath != "" {
				f := logging.FileWriter(logPath)
				logFile = f
				w = f
			}
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				level = slog.LevelInfo
			}
			slog.SetDefault(logging.Logger(w, logJSON, level))
			if err != nil {
				slog.WarnContext(ctx, "invalid log level, defaulting to INFO", "level", logLevel, "error", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
	}
	cmd.SetContext(ctx)
	cmd.AddCommand(
		NewVersionCmd(gitsha),
		NewDecodeCmd(ctx),
		NewInfoCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	return cmd
}

func NewVersionCmd(gitsha string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
}

// inputFlags registers the flags shared by commands that read a JBIG2 stream.
func inputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("globals", "", "JBIG2Globals stream for a PDF-embedded page stream")
	f.Bool("embedded", false, "treat the input as a headerless embedded stream")
}

// openDecoder loads the input at path, "-" for stdin, and the --globals
// file, and parses them.
func openDecoder(cmd *cobra.Command, path string) (*jbig2.Decoder, error) {
	globalsPath, _ := cmd.Flags().GetString("globals")
	embedded, _ := cmd.Flags().GetBool("embedded")

	src, err := loadInput(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	var globals []byte
	if globalsPath != "" {
		if globals, err = loadInput(globalsPath, nil); err != nil {
			return nil, err
		}
	}
	dec, err := jbig2.New(jbig2.Options{
		GlobalData: globals,
		SrcData:    src,
		Embedded:   embedded,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return dec, nil
}
