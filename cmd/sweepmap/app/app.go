package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/auv-navigation/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger, out io.Writer) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.ListMissions {
		return listMissions(ctx, store, out)
	}

	survey, err := readSurvey(ctx, store, config, logger)
	if err != nil {
		return err
	}

	return renderSurvey(survey, config, logger)
}

func listMissions(ctx context.Context, store *storage.SqliteStore, out io.Writer) error {
	missions, err := store.Missions(ctx)
	if err != nil {
		return fmt.Errorf("listing missions: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTARTED\t")
	for _, m := range missions {
		fmt.Fprintf(tw, "%s\t%s\t%s (%s)\t\n", m.ID, m.Kind, m.StartTime.Local().Format(time.DateTime), humanize.Time(m.StartTime))
	}
	return tw.Flush()
}

func readSurvey(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*SurveyData, error) {
	opts := []storage.ReaderOption{storage.WithChannel(config.Channel)}
	if !config.IncludeStale {
		opts = append(opts, storage.WithoutStale())
	}

	iter, err := store.ReadObservations(ctx, config.MissionID, opts...)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	survey := NewSurveyData(iter.Mission(), config.Channel)
	for iter.Next(ctx) {
		survey.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}

	size := survey.Area.Size()
	logger.Info("finished reading observations",
		slog.Group("stats",
			slog.String("mission", config.MissionID),
			slog.String("channel", config.Channel),
			slog.Int("readings", len(survey.Points)),
			slog.Int("withoutFix", survey.Skipped()),
			slog.String("area", fmt.Sprintf("%0.1fm x %0.1fm", size.X, size.Y)),
			slog.String("minValue", humanize.FtoaWithDigits(survey.Bounds.Min, 3)),
			slog.String("maxValue", humanize.FtoaWithDigits(survey.Bounds.Max, 3)),
		))

	return survey, nil
}

func renderSurvey(survey *SurveyData, config *Config, logger *slog.Logger) (err error) {
	renderer, err := NewSurveyRenderer(RenderConfig{ColorTheme: config.Theme})
	if err != nil {
		return fmt.Errorf("creating survey renderer: %w", err)
	}

	img, err := renderer.Render(survey)
	if err != nil {
		return fmt.Errorf("rendering survey: %w", err)
	}

	logger.Info("writing image",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}
