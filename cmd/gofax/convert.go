package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/dbehnke/gofax/internal/t4"
	"github.com/dbehnke/gofax/internal/tiff"
)

// newConvertCommand builds the one-shot TIFF/F recompression utility
// SPEC_FULL.md's ambient-stack section names: decode a class-F file back
// to page bitmaps and re-encode it under a different T.4/T.6 compression,
// driving internal/t4 and internal/tiff directly rather than through a
// live T.30 session.
func newConvertCommand() *cobra.Command {
	var compressionFlag string

	cmd := &cobra.Command{
		Use:   "convert <in.tif> <out.tif>",
		Short: "Recompress a class-F TIFF/F file under a different T.4/T.6 mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			compression, err := parseCompressionFlag(compressionFlag)
			if err != nil {
				return err
			}
			return convertFile(args[0], args[1], compression, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&compressionFlag, "compression", "2d", "output compression: 1d, 2d, or t6")
	cmd.AddCommand(newInspectCommand())
	return cmd
}

func parseCompressionFlag(s string) (t4.Compression, error) {
	switch s {
	case "1d":
		return t4.Compression1D, nil
	case "2d":
		return t4.Compression2D, nil
	case "t6", "mmr":
		return t4.CompressionMMR, nil
	default:
		return 0, fmt.Errorf("convert: unknown compression %q (want 1d, 2d, or t6)", s)
	}
}

func convertFile(inPath, outPath string, compression t4.Compression, logw interface{ Write([]byte) (int, error) }) error {
	logger := log.New(logw, "convert: ", log.LstdFlags)

	in := tiff.NewReader()
	if err := in.Open(inPath); err != nil {
		return err
	}
	defer in.Close()

	out := tiff.NewWriter()
	if err := out.Open(outPath); err != nil {
		return err
	}

	pages := 0
	for {
		width, xres, yres, ok := in.StartPage()
		if !ok {
			break
		}
		if err := out.StartPage(width, xres, yres); err != nil {
			return err
		}
		rows := 0
		for {
			row, ok := in.Row()
			if !ok {
				break
			}
			if err := out.PutRow(row); err != nil {
				return err
			}
			rows++
		}
		stats, quality := in.Stats()
		if err := out.EndPage(compression, quality); err != nil {
			return err
		}
		pages++
		logger.Printf("page %d: %d rows, %d bad, quality=%v", pages, rows, stats.BadRows, quality)
	}
	if pages == 0 {
		return fmt.Errorf("convert: %s contains no pages", inPath)
	}
	return out.Close()
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.tif>",
		Short: "Print page geometry and compression for a class-F TIFF/F file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := tiff.NewReader()
			if err := r.Open(args[0]); err != nil {
				return err
			}
			defer r.Close()

			page := 0
			for {
				width, xres, yres, ok := r.StartPage()
				if !ok {
					break
				}
				rows := 0
				for {
					if _, ok := r.Row(); !ok {
						break
					}
					rows++
				}
				stats, quality := r.Stats()
				fmt.Fprintf(cmd.OutOrStdout(), "page %d: %dx%d px, %dx%d px/m, compression=%v, rows=%d bad=%d quality=%v\n",
					page, width, rows, xres, yres, r.Compression(), stats.Rows, stats.BadRows, quality)
				page++
			}
			if page == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pages")
			}
			return nil
		},
	}
}
