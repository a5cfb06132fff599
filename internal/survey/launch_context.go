package survey

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/paulexconde/surveysense/pkg/fault"
)

// LaunchContext describes when and why a survey instance was started.
type LaunchContext struct {
	LaunchTime     time.Time
	Timezone       string
	ActiveTriggers []string
}

func NewLaunchContext(launchTime time.Time, timezone string, activeTriggers []string) (LaunchContext, error) {
	if launchTime.IsZero() {
		return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, "the launch time is missing", nil)
	}
	if strings.TrimSpace(timezone) == "" {
		return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, "timezone in message is null", nil)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, "invalid timezone: "+timezone, err)
	}

	triggers := make([]string, 0, len(activeTriggers))
	for _, t := range activeTriggers {
		if strings.TrimSpace(t) == "" {
			return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, "an active trigger ID is blank", nil)
		}
		triggers = append(triggers, t)
	}

	return LaunchContext{
		LaunchTime:     launchTime.In(loc),
		Timezone:       timezone,
		ActiveTriggers: triggers,
	}, nil
}

// ParseLaunchContext reads the survey_launch_context document:
// launch_time in epoch milliseconds, launch_timezone and active_triggers.
func ParseLaunchContext(doc map[string]any) (LaunchContext, error) {
	if doc == nil {
		return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, "the launch context is missing", nil)
	}

	millis, ok := toWhole(doc[JSONKeyLaunchTime])
	if !ok {
		return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, fmt.Sprintf("the launch time is not a number of milliseconds: %v", doc[JSONKeyLaunchTime]), nil)
	}

	tz, _ := doc[JSONKeyLaunchTimezone].(string)

	var triggers []string
	switch v := doc[JSONKeyActiveTriggers].(type) {
	case nil:
	case []string:
		triggers = v
	case []any:
		for _, t := range v {
			s, ok := t.(string)
			if !ok {
				return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, fmt.Sprintf("an active trigger ID is not a string: %v", t), nil)
			}
			triggers = append(triggers, s)
		}
	default:
		return LaunchContext{}, fault.NewResponseError(JSONKeyLaunchContext, "the active triggers must be a list", nil)
	}

	return NewLaunchContext(time.UnixMilli(millis), tz, triggers)
}

func (lc LaunchContext) ToJSON() map[string]any {
	triggers := make([]any, 0, len(lc.ActiveTriggers))
	for _, t := range lc.ActiveTriggers {
		triggers = append(triggers, t)
	}
	return map[string]any{
		JSONKeyLaunchTime:     lc.LaunchTime.UnixMilli(),
		JSONKeyLaunchTimezone: lc.Timezone,
		JSONKeyActiveTriggers: triggers,
	}
}
