package cmd

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagebits/jbig2/internal/logging"
	"github.com/pagebits/jbig2/pkg/jbig2"
	"github.com/spf13/cobra"
)

func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "decode JBIG2 pages to PNG",
		Long: "decode writes one page, or every page with --all, as PNG. " +
			"The input may be a JBIG2 file, an embedded stream (- for stdin), or either wrapped in zlib or zstd.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			page, _ := cmd.Flags().GetInt("page")
			all, _ := cmd.Flags().GetBool("all")
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				out = defaultOutput(path)
			}

			dec, err := openDecoder(cmd, path)
			if err != nil {
				return err
			}
			ctx := logging.AppendCtx(ctx, slog.String("input", path), slog.String("document", dec.ID().String()))

			if !all {
				if page < 1 || page > dec.PageCount() {
					return fmt.Errorf("page %d out of range, document has %d pages", page, dec.PageCount())
				}
				return writePage(ctx, dec, page-1, out)
			}
			for i := 0; i < dec.PageCount(); i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := writePage(ctx, dec, i, numberedOutput(out, i+1)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	inputFlags(cmd)
	f := cmd.Flags()
	f.IntP("page", "p", 1, "page to decode, counting from 1")
	f.Bool("all", false, "decode every page to <out>-<n>.png")
	f.StringP("out", "o", "", "output PNG (default: input name with .png)")
	return cmd
}

func writePage(ctx context.Context, dec *jbig2.Decoder, index int, out string) error {
	img, err := dec.Page(index)
	if err != nil {
		return fmt.Errorf("page %d: %w", index+1, err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img.ToGray()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	slog.InfoContext(ctx, "wrote page",
		slog.Int("page", index+1),
		slog.String("output", out),
		slog.Int("width", img.Width()),
		slog.Int("height", img.Height()))
	return f.Close()
}

func defaultOutput(input string) string {
	if input == "-" {
		return "page.png"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
}

func numberedOutput(out string, n int) string {
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(out, ext), n, ext)
}
