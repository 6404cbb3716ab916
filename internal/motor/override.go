package motor

// NumChannels is the number of RC channels carried by an override
const NumChannels = 16

// Override is the full RC override array sent to the flight controller
type Override [NumChannels]uint16

// NeutralOverride returns an override with every channel at neutral
func NeutralOverride() Override {
	var o Override
	o.Neutral()
	return o
}

// Neutral resets every channel to PWMNeutral
func (o *Override) Neutral() {
	for i := range o {
		o[i] = PWMNeutral
	}
}

// IsNeutral reports whether every channel is at neutral
func (o *Override) IsNeutral() bool {
	for _, v := range o {
		if v != PWMNeutral {
			return false
		}
	}
	return true
}

// Apply writes the command's pulse width to the channel its axis drives.
// StopAll resets the whole array.
func (o *Override) Apply(c Command) {
	if c.Axis() == AxisStopAll {
		o.Neutral()
		return
	}
	if ch := c.Axis().Channel(); ch >= 0 {
		o[ch] = ClampPWM(int(c.PWM()))
	}
}
