package mavlink

import (
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/roman-kulish/auv-navigation/internal/motor"
	"github.com/roman-kulish/auv-navigation/internal/telemetry"
)

const (
	// temperatureSensor is the external probe reporting SCALED_PRESSURE3
	temperatureSensor = 0

	// depthSensor is the pressure sensor reporting SCALED_PRESSURE
	depthSensor = 1
)

// toUpdate converts an inbound message into a telemetry update. It reports
// false for messages the navigation core does not consume.
func toUpdate(msg message.Message, at time.Time) (telemetry.Update, bool) {
	switch m := msg.(type) {
	case *common.MessageGlobalPositionInt:
		return telemetry.PositionUpdate{
			At: at,
			Position: telemetry.Position{
				Latitude:    float64(m.Lat) / 1e7,
				Longitude:   float64(m.Lon) / 1e7,
				Altitude:    float64(m.Alt) / 1000,
				RelativeAlt: float64(m.RelativeAlt) / 1000,
				VX:          m.Vx,
				VY:          m.Vy,
				VZ:          m.Vz,
				Heading:     m.Hdg,
			},
		}, true

	case *common.MessageScaledPressure3:
		return telemetry.PressureUpdate{
			At:       at,
			Sensor:   temperatureSensor,
			Pressure: telemetry.Pressure{Absolute: m.PressAbs, Diff: m.PressDiff, Temperature: m.Temperature},
		}, true

	case *common.MessageScaledPressure:
		return telemetry.PressureUpdate{
			At:       at,
			Sensor:   depthSensor,
			Pressure: telemetry.Pressure{Absolute: m.PressAbs, Diff: m.PressDiff, Temperature: m.Temperature},
		}, true

	case *common.MessageSysStatus:
		return telemetry.PowerUpdate{
			At:    at,
			Power: telemetry.Power{Voltage: m.VoltageBattery, Current: m.CurrentBattery},
		}, true
	}

	return nil, false
}

// toOverride builds an RC_CHANNELS_OVERRIDE carrying the whole override array
func toOverride(o motor.Override, targetSystem, targetComponent uint8) *common.MessageRcChannelsOverride {
	return &common.MessageRcChannelsOverride{
		TargetSystem:    targetSystem,
		TargetComponent: targetComponent,
		Chan1Raw:        o[0],
		Chan2Raw:        o[1],
		Chan3Raw:        o[2],
		Chan4Raw:        o[3],
		Chan5Raw:        o[4],
		Chan6Raw:        o[5],
		Chan7Raw:        o[6],
		Chan8Raw:        o[7],
		Chan9Raw:        o[8],
		Chan10Raw:       o[9],
		Chan11Raw:       o[10],
		Chan12Raw:       o[11],
		Chan13Raw:       o[12],
		Chan14Raw:       o[13],
		Chan15Raw:       o[14],
		Chan16Raw:       o[15],
	}
}

// isArmed reports whether a heartbeat announces armed motors
func isArmed(m *common.MessageHeartbeat) bool {
	return m.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0
}
