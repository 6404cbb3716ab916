package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath       string
	MissionID    string
	OutputFile   string
	Format       ImageFormat
	Channel      string // Probe channel ID, e.g. "2" for dissolved oxygen
	Theme        ColorTheme
	IncludeStale bool
	ListMissions bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// channelAliases maps probe labels to board channel IDs
var channelAliases = map[string]string{
	"do":   "2",
	"cond": "3",
}

func NewConfig() *Config {
	return &Config{
		Format:  ImagePNG,
		Channel: "2",
		Theme:   MarineTheme,
	}
}

// NewConfigFromCLI parses the process arguments
func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	c, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fs.Usage()
		return nil, err
	}
	return c, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, theme string
	fs.StringVar(&c.DBPath, "db", "", "Path to the mission database file")
	fs.StringVar(&c.MissionID, "m", "", "Mission ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&c.Channel, "channel", c.Channel, "Probe channel to plot, by ID or label. [do, cond]")
	fs.StringVar(&theme, "theme", string(c.Theme), "Color theme. [classic, grayscale, jungle, thermal, marine]")
	fs.BoolVar(&c.IncludeStale, "include-stale", false, "Plot readings repeated after a probe failure")
	fs.BoolVar(&c.ListMissions, "list", false, "List recorded missions and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	if id, ok := channelAliases[strings.ToLower(c.Channel)]; ok {
		c.Channel = id
	}
	c.Theme = ColorTheme(strings.ToLower(theme))

	if c.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if c.ListMissions {
		return c, nil
	}

	var err error
	if c.MissionID == "" {
		err = errors.New("mission id is required")
	} else if _, uErr := uuid.Parse(c.MissionID); uErr != nil {
		err = fmt.Errorf("invalid mission id '%s': %w", c.MissionID, uErr)
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := validColorThemes[c.Theme]; !ok {
		err = fmt.Errorf("invalid color theme: %s", c.Theme)
	}
	if err != nil {
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
