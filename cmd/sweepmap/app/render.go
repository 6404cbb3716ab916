package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/golang/geo/r2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 10.0
	pixelsPerLabel = 150.0
	minAreaMeters  = 10.0

	defaultPlotSize   = 900
	defaultPointSize  = 7
	defaultLegendBar  = 20
	defaultTimeFormat = time.DateTime

	// Default border sizes in pixels
	defaultTopBorder    = 40
	defaultLeftBorder   = 40
	defaultBottomBorder = 70
	defaultRightBorder  = 140
)

var trackColor = color.RGBA{R: 0xb0, G: 0xb0, B: 0xb0, A: 0xff}

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Space for the north marker
	Left   int
	Bottom int // Space for the scale bar and information bar
	Right  int // Space for the legend
}

// RenderConfig holds all configuration options for survey visualization
type RenderConfig struct {
	DatetimeFormat string
	Location       *time.Location

	PlotSize   int // Longest side of the plot area in pixels
	PointSize  int // Side of the square drawn for every reading
	FontSize   float64
	ColorTheme ColorTheme

	BorderConfig BorderConfig
}

// SurveyRenderer draws the readings of a mission onto a north-up map
type SurveyRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

// NewSurveyRenderer creates a renderer, filling unset options with defaults
func NewSurveyRenderer(config RenderConfig) (*SurveyRenderer, error) {
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultTimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.PlotSize == 0 {
		config.PlotSize = defaultPlotSize
	}
	if config.PointSize == 0 {
		config.PointSize = defaultPointSize
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig == (BorderConfig{}) {
		config.BorderConfig = BorderConfig{
			Top:    defaultTopBorder,
			Left:   defaultLeftBorder,
			Bottom: defaultBottomBorder,
			Right:  defaultRightBorder,
		}
	}
	if config.PlotSize < 2*config.PointSize {
		return nil, fmt.Errorf("plot size %d is too small for %dpx points", config.PlotSize, config.PointSize)
	}

	return &SurveyRenderer{config: config}, nil
}

// plotGeometry maps survey meters onto image pixels
type plotGeometry struct {
	area  r2.Rect
	scale float64 // Pixels per meter
	plot  image.Rectangle
}

func (g plotGeometry) pixel(p r2.Point) image.Point {
	return image.Point{
		X: g.plot.Min.X + int(math.Round((p.X-g.area.X.Lo)*g.scale)),
		Y: g.plot.Min.Y + int(math.Round((g.area.Y.Hi-p.Y)*g.scale)),
	}
}

func (r *SurveyRenderer) geometry(survey *SurveyData) plotGeometry {
	area := survey.Area
	size := area.Size()

	// pad small or degenerate areas symmetrically so they still fill the plot
	if size.X < minAreaMeters {
		c := area.Center()
		area.X.Lo, area.X.Hi = c.X-minAreaMeters/2, c.X+minAreaMeters/2
	}
	if size.Y < minAreaMeters {
		c := area.Center()
		area.Y.Lo, area.Y.Hi = c.Y-minAreaMeters/2, c.Y+minAreaMeters/2
	}
	size = area.Size()

	scale := float64(r.config.PlotSize-r.config.PointSize) / math.Max(size.X, size.Y)
	half := r.config.PointSize / 2
	left := r.config.BorderConfig.Left + half
	top := r.config.BorderConfig.Top + half

	return plotGeometry{
		area:  area,
		scale: scale,
		plot: image.Rect(left, top,
			left+int(math.Ceil(size.X*scale)),
			top+int(math.Ceil(size.Y*scale))),
	}
}

// Render creates an image of the survey with annotations
func (r *SurveyRenderer) Render(survey *SurveyData) (*image.RGBA, error) {
	if survey.Empty() {
		return nil, fmt.Errorf("no positioned readings to render")
	}

	geo := r.geometry(survey)
	fullWidth := geo.plot.Max.X + r.config.PointSize/2 + 1 + r.config.BorderConfig.Right
	fullHeight := geo.plot.Max.Y + r.config.PointSize/2 + 1 + r.config.BorderConfig.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	if r.colorMap == nil {
		r.colorMap = NewColorMapper(r.config.ColorTheme, survey.Bounds)
	} else {
		r.colorMap.UpdateBounds(survey.Bounds)
	}

	ann, err := newAnnotator(annotatorConfig{
		DatetimeFormat: r.config.DatetimeFormat,
		Location:       r.config.Location,
		FontSize:       r.config.FontSize,
		Borders:        r.config.BorderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	r.renderTrack(img, geo, survey)
	r.renderReadings(img, geo, survey)

	if err = ann.annotate(img, geo, survey, r.colorMap); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// renderTrack joins consecutive readings in the order they were taken
func (r *SurveyRenderer) renderTrack(img *image.RGBA, geo plotGeometry, survey *SurveyData) {
	for i := 1; i < len(survey.Points); i++ {
		drawLine(img, geo.pixel(survey.Points[i-1].Position), geo.pixel(survey.Points[i].Position), trackColor)
	}
}

func (r *SurveyRenderer) renderReadings(img *image.RGBA, geo plotGeometry, survey *SurveyData) {
	half := r.config.PointSize / 2
	for _, p := range survey.Points {
		c := geo.pixel(p.Position)
		rect := image.Rect(c.X-half, c.Y-half, c.X+half+1, c.Y+half+1)
		draw.Draw(img, rect, image.NewUniform(r.colorMap.GetColor(p.Value)), image.Point{}, draw.Src)
	}
}

func drawLine(img *image.RGBA, a, b image.Point, c color.Color) {
	steps := max(abs(b.X-a.X), abs(b.Y-a.Y))
	if steps == 0 {
		img.Set(a.X, a.Y, c)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		img.Set(a.X+int(math.Round(t*float64(b.X-a.X))), a.Y+int(math.Round(t*float64(b.Y-a.Y))), c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Internal annotator implementation
type annotatorConfig struct {
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, geo plotGeometry, survey *SurveyData, cm *ColorMapper) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawNorthMarker(img, geo); err != nil {
		return fmt.Errorf("drawing north marker: %w", err)
	}
	if err := a.drawScaleBar(img, geo); err != nil {
		return fmt.Errorf("drawing scale bar: %w", err)
	}
	if err := a.drawLegend(img, geo, survey, cm); err != nil {
		return fmt.Errorf("drawing legend: %w", err)
	}
	if err := a.drawInfoBar(img, survey); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawNorthMarker(img *image.RGBA, geo plotGeometry) error {
	x := geo.plot.Max.X
	for y := geo.plot.Min.Y - 15; y < geo.plot.Min.Y-3; y++ {
		img.Set(x, y, color.Black)
	}

	width := font.MeasureString(a.fontFace, "N").Round()
	_, err := a.context.DrawString("N", freetype.Pt(x-width/2, geo.plot.Min.Y-18))
	return err
}

func (a *annotator) drawScaleBar(img *image.RGBA, geo plotGeometry) error {
	meters := calculateNiceDistanceStep(pixelsPerLabel / geo.scale)
	length := int(math.Round(meters * geo.scale))

	y := img.Bounds().Max.Y - a.config.Borders.Bottom + a.fontHeight()
	x := a.config.Borders.Left

	for i := 0; i <= length; i++ {
		img.Set(x+i, y, color.Black)
	}
	for i := -4; i <= 0; i++ {
		img.Set(x, y+i, color.Black)
		img.Set(x+length, y+i, color.Black)
	}

	label := humanize.FtoaWithDigits(meters, 1) + " m"
	_, err := a.context.DrawString(label, freetype.Pt(x+length+6, y+a.fontHeight()/3))
	return err
}

func (a *annotator) drawLegend(img *image.RGBA, geo plotGeometry, survey *SurveyData, cm *ColorMapper) error {
	left := geo.plot.Max.X + a.config.Borders.Right/4
	top, bottom := geo.plot.Min.Y, geo.plot.Max.Y
	height := bottom - top

	for y := top; y <= bottom; y++ {
		c := cm.Normalized(1 - float64(y-top)/float64(max(height, 1)))
		for x := left; x < left+defaultLegendBar; x++ {
			img.Set(x, y, c)
		}
	}

	labels := []struct {
		text string
		y    int
	}{
		{humanize.FtoaWithDigits(survey.Bounds.Max, 2), top + a.fontHeight()/2},
		{humanize.FtoaWithDigits(survey.Bounds.Min, 2), bottom},
		{survey.Name, top - a.fontHeight()/2},
	}
	for _, l := range labels {
		if l.text == "" {
			continue
		}
		if _, err := a.context.DrawString(l.text, freetype.Pt(left+defaultLegendBar+4, l.y)); err != nil {
			return err
		}
	}

	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, survey *SurveyData) error {
	var sb strings.Builder

	if survey.Mission != nil {
		sb.WriteString(fmt.Sprintf("Mission %s (%s); ", survey.Mission.ID, survey.Mission.Kind))
	}
	name := survey.Name
	if name == "" {
		name = "channel " + survey.Channel
	}
	sb.WriteString(fmt.Sprintf("%s: %s readings; ", name, humanize.Comma(int64(len(survey.Points)))))
	sb.WriteString(fmt.Sprintf("Time: %s - %s",
		survey.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		survey.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat)))

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - a.fontHeight()/2 - metrics.Descent.Round()

	_, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.Borders.Left, textY))
	if err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// calculateNiceDistanceStep rounds a distance in meters up to 1, 2 or 5 times
// a power of ten
func calculateNiceDistanceStep(meters float64) float64 {
	if meters <= 0 {
		return 1
	}

	magnitude := math.Pow(10, math.Floor(math.Log10(meters)))
	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= meters {
			return step
		}
	}
	return 10 * magnitude
}
