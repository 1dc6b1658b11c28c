package logic

import "time"

// Blink half periods used by the urgency policy.
const (
	SlowBlink = time.Second
	FastBlink = 250 * time.Millisecond
)

// Urgency maps whole minutes until the next arrival to an indicator command.
//
//	m > 10       off
//	7 < m <= 10  steady on
//	5 <= m <= 7  slow blink
//	2 <= m < 5   fast blink
//	otherwise    off
func Urgency(m int) IndicatorCommand {
	switch {
	case m > 10:
		return IndicatorOff
	case m > 7:
		return IndicatorOn
	case m >= 5:
		return Blink(SlowBlink)
	case m >= 2:
		return Blink(FastBlink)
	}
	return IndicatorOff
}

// NextArrival returns the whole minutes until the first arrival that has not
// yet passed. ok is false when there is none.
func NextArrival(arrivals []Arrival, now time.Time) (minutes int, ok bool) {
	for _, a := range arrivals {
		d := a.At.Sub(now)
		if d < 0 {
			continue
		}
		return int(d / time.Minute), true
	}
	return 0, false
}

// UrgencyAt applies Urgency to the nearest arrival; off when there is none.
func UrgencyAt(arrivals []Arrival, now time.Time) IndicatorCommand {
	m, ok := NextArrival(arrivals, now)
	if !ok {
		return IndicatorOff
	}
	return Urgency(m)
}

// Override lets the user force the indicator regardless of the policy.
type Override int

const (
	OverrideAuto Override = iota
	OverrideMuted
	OverrideSteady

	numOverrides = 3
)

func (o Override) String() string {
	switch o {
	case OverrideAuto:
		return "AUTO"
	case OverrideMuted:
		return "MUTED"
	case OverrideSteady:
		return "STEADY"
	}
	return "INVALID"
}

// Next cycles AUTO -> MUTED -> STEADY -> AUTO.
func (o Override) Next() Override {
	return (o + 1) % numOverrides
}

// Apply returns the command to issue given the policy command.
func (o Override) Apply(policy IndicatorCommand) IndicatorCommand {
	switch o {
	case OverrideMuted:
		return IndicatorOff
	case OverrideSteady:
		return IndicatorOn
	}
	return policy
}
