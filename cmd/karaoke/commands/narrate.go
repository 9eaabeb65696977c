package commands

import (
	"fmt"

	"github.com/frankwiersma/PowerPointKaraoke/internal/extract"
	"github.com/frankwiersma/PowerPointKaraoke/internal/pipeline"
	"github.com/frankwiersma/PowerPointKaraoke/internal/script"
	"github.com/spf13/cobra"
)

var (
	narratePDF   string
	narrateSlide int
)

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Generate and play back the narration for one slide",
	Long: `Narrate produces the voiceover for a single slide: extract the
slide's content, write the script, and synthesize the audio. The following
two slides are prefetched so stepping forward is instant.`,
	RunE: runNarrate,
}

func init() {
	narrateCmd.Flags().StringVar(
		&narratePDF, "pdf", "", "Path to the PDF deck",
	)
	narrateCmd.Flags().IntVar(
		&narrateSlide, "slide", 1, "1-based slide number",
	)
	narrateCmd.MarkFlagRequired("pdf")
}

func runNarrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// The deck is closed manually rather than via deck.close: a session
	// reset would release the audio files the user is about to play.
	d, err := a.openDeck(narratePDF)
	if err != nil {
		return err
	}
	defer d.doc.Close()

	total := d.sess.TotalSlides()
	if narrateSlide < 1 || narrateSlide > total {
		return fmt.Errorf("slide %d out of range: deck has %d slides",
			narrateSlide, total)
	}

	result, err := d.prod.Narrate(ctx, narrateSlide)
	if err != nil {
		return err
	}
	d.sess.RecordHistory(narrateSlide)

	// Warm the caches for the slides the presenter reaches next. A
	// one-shot invocation still benefits: the audio files outlive the
	// process in the temp directory until the session is reset.
	pre := pipeline.NewPrefetcher(pipeline.PrefetcherConfig{
		Session:  d.sess,
		Document: d.doc,
		Extractor: extract.New(extract.Config{
			Model:  a.model,
			Logger: a.log.With("subsys", "extract"),
		}),
		Scripts: script.New(script.Config{
			Model:  a.model,
			Logger: a.log.With("subsys", "script"),
		}),
		Voices: a.voices,
		Logger: a.log.With("subsys", "prefetch"),
	})
	pre.AfterScript(ctx, narrateSlide)
	pre.Wait()

	fmt.Printf("Slide %d of %d [%s]\n\n", narrateSlide, total,
		d.sess.Language())
	fmt.Println(result.Script)
	fmt.Printf("\nAudio: %s\n", result.Audio.Path())

	return nil
}
