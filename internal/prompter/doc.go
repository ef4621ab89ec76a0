// Package prompter is the host scheduling context around package trigger.
//
// It owns one Tracker per participant, serializes Initialize/Poll per
// tracker, drives polling from a robfig/cron interval schedule, reports every
// decision to the report sink, and publishes fired prompts on the event bus.
package prompter
