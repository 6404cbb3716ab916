package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roman-kulish/auv-navigation/internal/sampling"
)

const clockLayout = "15:04:05"

// TextLog appends one human readable line per sample and per battery record,
// in the format field crews already parse.
type TextLog struct {
	samples io.Writer
	battery io.Writer
	closers []io.Closer
}

// NewTextLog writes samples and battery lines to the given writers
func NewTextLog(samples, battery io.Writer) *TextLog {
	return &TextLog{samples: samples, battery: battery}
}

// OpenTextLog opens, or creates, the two log files in append mode
func OpenTextLog(samplesPath, batteryPath string) (*TextLog, error) {
	samples, err := os.OpenFile(samplesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening samples log: %w", err)
	}

	battery, err := os.OpenFile(batteryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		_ = samples.Close()
		return nil, fmt.Errorf("opening battery log: %w", err)
	}

	l := NewTextLog(samples, battery)
	l.closers = []io.Closer{samples, battery}
	return l, nil
}

// WriteSample appends a line like
// "DO: 7.51, Cond: 412, Temp: 18.25, Lat -33.8568, Long 151.2153 14:03:11"
func (l *TextLog) WriteSample(s sampling.Sample) error {
	var sb strings.Builder
	for _, r := range s.Readings {
		sb.WriteString(r.Channel.Name)
		sb.WriteString(": ")
		sb.WriteString(strconv.FormatFloat(r.Value, 'f', -1, 64))
		if r.Stale {
			sb.WriteString(" (stale)")
		}
		sb.WriteString(", ")
	}

	_, err := fmt.Fprintf(l.samples, "%sTemp: %s, Lat %s, Long %s %s\n",
		sb.String(),
		strconv.FormatFloat(s.Temperature, 'f', -1, 64),
		strconv.FormatFloat(s.Latitude, 'f', -1, 64),
		strconv.FormatFloat(s.Longitude, 'f', -1, 64),
		s.Timestamp.Format(clockLayout))
	return err
}

// WriteBattery appends a line like "250 mA per meter 14:03:11"
func (l *TextLog) WriteBattery(b sampling.BatteryDraw) error {
	_, err := fmt.Fprintf(l.battery, "%s mA per meter %s\n",
		strconv.FormatFloat(b.MilliampsPerMeter, 'f', -1, 64),
		b.Timestamp.Format(clockLayout))
	return err
}

// Close closes the files opened by OpenTextLog
func (l *TextLog) Close() error {
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	l.closers = nil
	return errors.Join(errs...)
}
