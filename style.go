package stepper

import (
	"maps"
	"strconv"
	"time"
)

const (
	DefaultDuration     = time.Second
	DefaultStepGap      = 50 * time.Millisecond
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultMailboxSize  = 16
	AnimationProperty   = "animation"
	AnimationName       = "animation-name"
	AnimationDuration   = "animation-duration"
	animationIterations = "animation-iteration-count"
	animationFillMode   = "animation-fill-mode"
)

var defaultStyle = Style{
	animationIterations: "1",
	animationFillMode:   "forwards",
}

// EffectiveStyle is the style an element receives for a step. The engine owns
// the animation duration: a user "animation" shorthand only names the
// animation and any user duration is overwritten. An explicit animation-name
// wins over the shorthand.
func EffectiveStyle(duration time.Duration, style Style) Style {
	out := maps.Clone(defaultStyle)
	if name, ok := style[AnimationProperty]; ok {
		out[AnimationName] = name
	}
	for property, value := range style {
		if property == AnimationProperty {
			continue
		}
		out[property] = value
	}
	out[AnimationDuration] = strconv.FormatInt(duration.Milliseconds(), 10) + "ms"
	return out
}
