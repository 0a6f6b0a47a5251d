// Package clock provides the schedule-driven triggers and their paired
// actions: fixed intervals, absolute dates, a daily time of day and standard
// cron expressions. None of them talk to an upstream service.
package clock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
)

// now is swapped by tests.
var now = time.Now

// Register adds the clock components to the registry.
func Register(reg *component.Registry) error {
	defs := []*component.Definition{
		{
			Name:       "time_trigger",
			Kind:       core.KindTrigger,
			NewTrigger: newTimeTrigger,
		},
		{
			Name: "date_action",
			Kind: core.KindTrigger,
			ConfigSchema: schema.Schema{
				"target_date": {Type: schema.TypeString, Required: true, Description: "ISO-8601 date to fire at"},
			},
			NewTrigger: newDateTrigger,
		},
		{
			Name: "time_of_day_action",
			Kind: core.KindTrigger,
			ConfigSchema: schema.Schema{
				"target_time": {Type: schema.TypeString, Required: true, Description: "HH:mm:ss time to fire at, once per day"},
			},
			NewTrigger: newTimeOfDayTrigger,
		},
		{
			Name: "cron_trigger",
			Kind: core.KindTrigger,
			ConfigSchema: schema.Schema{
				"schedule": {Type: schema.TypeString, Required: true, Description: "standard cron expression"},
			},
			NewTrigger: newCronTrigger,
		},
		{
			Name:      "time_action",
			Kind:      core.KindAction,
			NewAction: newTimeAction,
		},
		{
			Name: "date_action",
			Kind: core.KindAction,
			ConfigSchema: schema.Schema{
				"date_message": {Type: schema.TypeString, Default: "Default message for date action"},
			},
			NewAction: newDateAction,
		},
		{
			Name: "time_of_day_action",
			Kind: core.KindAction,
			ConfigSchema: schema.Schema{
				"time_message": {Type: schema.TypeString, Default: "Default message for time of day action"},
			},
			NewAction: newTimeOfDayAction,
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// time_trigger
// -----------------------------------------------------------------------------

// timeTrigger fires whenever the configured interval has elapsed since the
// last firing. Only the owning evaluator touches lastRun.
type timeTrigger struct {
	interval float64
	lastRun  float64
}

func newTimeTrigger(cfg core.Params) (component.Trigger, error) {
	interval, _ := cfg.Prop("interval").(int)
	lastRun, _ := cfg.Prop("last_run").(float64)
	return &timeTrigger{interval: float64(interval), lastRun: lastRun}, nil
}

func (t *timeTrigger) Evaluate(_ context.Context) (*component.TriggerResponse, error) {
	current := shared.Epoch(now())
	if current-t.lastRun < t.interval {
		return nil, nil
	}
	t.lastRun = current
	return &component.TriggerResponse{
		TriggeredAt: current,
		Content:     strconv.FormatFloat(current, 'f', -1, 64),
		Details:     core.Params{"event": "time_trigger"},
		Fields:      core.Params{"event_time": current},
	}, nil
}

// -----------------------------------------------------------------------------
// date_action trigger
// -----------------------------------------------------------------------------

// dateTrigger fires on every evaluation once the target date has passed.
type dateTrigger struct {
	target float64
}

func newDateTrigger(cfg core.Params) (component.Trigger, error) {
	raw, _ := cfg.Prop("target_date").(string)
	target, err := parseTargetDate(raw)
	if err != nil {
		return nil, err
	}
	return &dateTrigger{target: shared.Epoch(target)}, nil
}

// parseTargetDate accepts RFC 3339 and the zone-less ISO-8601 form, which is
// read in local time.
func parseTargetDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("target_date %q is not an ISO-8601 date: %w", s, core.ErrInvalidConfig)
	}
	return t, nil
}

func (d *dateTrigger) Evaluate(_ context.Context) (*component.TriggerResponse, error) {
	current := shared.Epoch(now())
	if current < d.target {
		return nil, nil
	}
	return &component.TriggerResponse{
		TriggeredAt: current,
		Details:     core.Params{"event": "date_reached"},
		Fields:      core.Params{"event_time": current},
	}, nil
}

// -----------------------------------------------------------------------------
// time_of_day_action trigger
// -----------------------------------------------------------------------------

// timeOfDayTrigger fires at most once per calendar day, the first evaluation
// at or after the target wall-clock time.
type timeOfDayTrigger struct {
	offset    time.Duration
	lastFired string
}

func newTimeOfDayTrigger(cfg core.Params) (component.Trigger, error) {
	raw, _ := cfg.Prop("target_time").(string)
	parsed, err := time.Parse("15:04:05", raw)
	if err != nil {
		return nil, fmt.Errorf("target_time %q is not in HH:mm:ss form: %w", raw, core.ErrInvalidConfig)
	}
	offset := time.Duration(parsed.Hour())*time.Hour +
		time.Duration(parsed.Minute())*time.Minute +
		time.Duration(parsed.Second())*time.Second
	return &timeOfDayTrigger{offset: offset}, nil
}

func (t *timeOfDayTrigger) Evaluate(_ context.Context) (*component.TriggerResponse, error) {
	current := now()
	midnight := time.Date(current.Year(), current.Month(), current.Day(), 0, 0, 0, 0, current.Location())
	target := midnight.Add(t.offset)
	if current.Before(target) {
		return nil, nil
	}
	day := current.Format(time.DateOnly)
	if t.lastFired == day {
		return nil, nil
	}
	t.lastFired = day
	stamp := shared.Epoch(current)
	return &component.TriggerResponse{
		TriggeredAt: stamp,
		Details:     core.Params{"event": "time_of_day"},
		Fields:      core.Params{"event_time": stamp},
	}, nil
}

// -----------------------------------------------------------------------------
// cron_trigger
// -----------------------------------------------------------------------------

// cronTrigger fires when the schedule's next activation has passed, then
// advances past the current instant. Activations missed while the process
// was down collapse into a single firing.
type cronTrigger struct {
	schedule cron.Schedule
	spec     string
	next     time.Time
}

func newCronTrigger(cfg core.Params) (component.Trigger, error) {
	spec, _ := cfg.Prop("schedule").(string)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q is not a cron expression: %v: %w", spec, err, core.ErrInvalidConfig)
	}
	return &cronTrigger{schedule: sched, spec: spec, next: sched.Next(now())}, nil
}

func (c *cronTrigger) Evaluate(_ context.Context) (*component.TriggerResponse, error) {
	current := now()
	if current.Before(c.next) {
		return nil, nil
	}
	scheduledFor := c.next
	c.next = c.schedule.Next(current)
	stamp := shared.Epoch(current)
	return &component.TriggerResponse{
		TriggeredAt: stamp,
		Content:     c.spec,
		Details:     core.Params{"event": "cron"},
		Fields: core.Params{
			"event_time":    stamp,
			"scheduled_for": shared.Epoch(scheduledFor),
		},
	}, nil
}

// -----------------------------------------------------------------------------
// Actions
// -----------------------------------------------------------------------------

// staticAction covers the three clock actions, which differ only in the
// message they report.
type staticAction struct {
	gate    *shared.Gate
	data    core.Params
	message string
}

func newStaticAction(cfg core.Params, message string) (component.Action, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &staticAction{gate: gate, data: cfg, message: message}, nil
}

func (a *staticAction) Execute(_ context.Context) (*component.ActionResponse, error) {
	ok, err := a.gate.Accept(a.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"message": a.message},
	}, nil
}

func newTimeAction(cfg core.Params) (component.Action, error) {
	return newStaticAction(cfg, "Time action executed successfully")
}

func newDateAction(cfg core.Params) (component.Action, error) {
	msg, _ := cfg.Prop("date_message").(string)
	return newStaticAction(cfg, fmt.Sprintf("Date action executed successfully with message: %s", msg))
}

func newTimeOfDayAction(cfg core.Params) (component.Action, error) {
	msg, _ := cfg.Prop("time_message").(string)
	return newStaticAction(cfg, fmt.Sprintf("Time of day action executed successfully with message: %s", msg))
}
