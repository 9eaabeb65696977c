package commands

import (
	"context"
	"fmt"

	"github.com/frankwiersma/PowerPointKaraoke/internal/export"
	"github.com/frankwiersma/PowerPointKaraoke/internal/media"
	"github.com/spf13/cobra"
)

var (
	exportPDF    string
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a deck as a narrated video or an asset archive",
	Long: `Export processes every slide in order, reusing anything already
cached, and packages the result. A slide that keeps failing is skipped so
one bad slide cannot sink the whole deck.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(
		&exportPDF, "pdf", "", "Path to the PDF deck",
	)
	exportCmd.Flags().StringVar(
		&exportOut, "out", "", "Output path for the artifact",
	)
	exportCmd.Flags().StringVar(
		&exportFormat, "format", "",
		"Output format: video or archive (default from config)",
	)
	exportCmd.MarkFlagRequired("pdf")
	exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := exportDeck(ctx, a, exportPDF, exportOut, exportFormat)
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d slides to %s\n",
		len(report.Included), report.Output)
	if len(report.Skipped) > 0 {
		fmt.Printf("Skipped slides: %v\n", report.Skipped)
	}

	return nil
}

// exportDeck runs the full export for one deck. Shared between the export
// command and watch mode.
func exportDeck(ctx context.Context, a *app, pdfPath, outPath,
	format string) (export.Report, error) {

	if format == "" {
		format = a.cfg.Export.Format
	}

	var pkg export.Packager
	switch format {
	case "video":
		pkg = media.NewVideoPackager(
			media.NewExecutor(), a.log.With("subsys", "media"),
		)
	case "archive":
		pkg = media.NewArchivePackager(a.log.With("subsys", "media"))
	default:
		return export.Report{}, fmt.Errorf(
			"unknown export format %q", format,
		)
	}

	d, err := a.openDeck(pdfPath)
	if err != nil {
		return export.Report{}, err
	}
	defer d.close()

	orch := export.New(export.Config{
		Session:  d.sess,
		Document: d.doc,
		Producer: d.prod,
		Prober:   media.NewProber(media.NewExecutor()),
		Logger:   a.log.With("subsys", "export"),
	})

	return orch.Run(ctx, pkg, outPath)
}
