package app

import (
	"image/color"
	"math"
)

// ColorTheme is a predefined color scheme for probe readings
type ColorTheme string

const (
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 256 // Default number of colors in the map
)

var validColorThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// ColorMapper maps readings onto a pre-computed gradient
type ColorMapper struct {
	colorMap      []color.Color
	theme         func(float64) color.Color
	themeName     ColorTheme
	size          int
	valuePerIndex float64
	boundsMin     float64
}

// NewColorMapper creates a color mapper with the default gradient size
func NewColorMapper(theme ColorTheme, bounds ValueBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a color mapper with size gradient steps
func NewColorMapperWithSize(theme ColorTheme, bounds ValueBounds, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		theme:     getColorTheme(theme),
		themeName: theme,
		size:      size,
	}
	for i := 0; i < size; i++ {
		cm.colorMap[i] = cm.theme(float64(i) / float64(size-1))
	}

	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds changes the range of readings spread over the gradient. A
// survey where every reading is equal maps onto the middle of the gradient.
func (cm *ColorMapper) UpdateBounds(bounds ValueBounds) {
	cm.boundsMin = bounds.Min
	cm.valuePerIndex = (bounds.Max - bounds.Min) / float64(cm.size-1)
}

// GetColor returns the gradient color of a reading, clamped to the bounds
func (cm *ColorMapper) GetColor(value float64) color.Color {
	if cm.valuePerIndex <= 0 {
		return cm.colorMap[cm.size/2]
	}

	index := int((value - cm.boundsMin) / cm.valuePerIndex)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= cm.size {
		return cm.colorMap[cm.size-1]
	}
	return cm.colorMap[index]
}

// Normalized returns the gradient color at position [0, 1]
func (cm *ColorMapper) Normalized(pos float64) color.Color {
	index := int(math.Round(math.Max(0, math.Min(1, pos)) * float64(cm.size-1)))
	return cm.colorMap[index]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// HSV represents a color in HSV (Hue, Saturation, Value) color space
type HSV struct {
	H float64 // Hue angle in degrees [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value/Brightness [0-1]
}

// RGB converts HSV to RGB color space
func (hsv HSV) RGB() color.Color {
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 255}
	}

	h := math.Mod(hsv.H, 360) / 60
	i := int(h)
	f := h - float64(i)

	v := uint8(hsv.V * 255)
	p := uint8((hsv.V * (1 - hsv.S)) * 255)
	q := uint8((hsv.V * (1 - (hsv.S * f))) * 255)
	t := uint8((hsv.V * (1 - (hsv.S * (1 - f)))) * 255)

	switch i {
	case 0:
		return color.RGBA{R: v, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: v, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: v, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: v, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: v, A: 255}
	default:
		return color.RGBA{R: v, G: p, B: q, A: 255}
	}
}

func getColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case ClassicTheme:
		return func(x float64) color.Color {
			return HSV{H: 240 - (x * 240), S: 0.9 + (x * 0.1), V: 0.4 + math.Pow(x, 0.7)*0.6}.RGB()
		}

	case GrayscaleTheme:
		return func(x float64) color.Color {
			v := uint8(math.Pow(x, 0.7) * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}

	case JungleTheme:
		return func(x float64) color.Color {
			return HSV{H: 120 - (x * 60), S: 1.0, V: 0.3 + (math.Pow(x, 0.6) * 0.7)}.RGB()
		}

	case ThermalTheme:
		return func(x float64) color.Color {
			switch {
			case x < 0.33:
				return color.RGBA{R: uint8((x * 3) * 255), A: 255}
			case x < 0.66:
				return color.RGBA{R: 255, G: uint8(((x - 0.33) * 3) * 255), A: 255}
			default:
				return color.RGBA{R: 255, G: 255, B: uint8(math.Min(1, (x-0.66)*3) * 255), A: 255}
			}
		}

	default: // MarineTheme
		return func(x float64) color.Color {
			return HSV{H: 240 - (x * 60), S: 1.0 - (x * 0.8), V: 0.3 + (math.Pow(x, 0.6) * 0.7)}.RGB()
		}
	}
}
