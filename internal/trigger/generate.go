package trigger

import (
	"time"
)

// Generate builds the trigger set for the calendar day containing day
// (interpreted in cfg.Location).
//
// Block i spans [start+i*L, start+(i+1)*L) where start is WindowStart:00 of
// that day and L is cfg.BlockLength(). Instants are drawn at millisecond
// granularity. Block 0 is uniform over its block; block i>0 is uniform over
// the part of its block at least MinSpacing after the previous pick, which is
// the distribution a redraw-until-spaced loop would settle on.
func Generate(day time.Time, cfg Config, rng Rand) (Set, error) {
	if err := cfg.Validate(); err != nil {
		return Set{}, err
	}
	if rng == nil {
		return Set{}, errNilRand
	}
	return generate(day, cfg, rng), nil
}

// generate assumes cfg is valid and rng is non-nil.
func generate(day time.Time, cfg Config, rng Rand) Set {
	loc := cfg.location()
	midnight := dayStart(day, loc)
	start := time.Date(midnight.Year(), midnight.Month(), midnight.Day(), cfg.WindowStart, 0, 0, 0, loc)

	blockMs := cfg.BlockLength().Milliseconds()
	spacingMs := ceilMillis(cfg.MinSpacing)

	entries := make([]Entry, cfg.Blocks)
	var prev int64 // offset of the previous pick from start, in ms
	for i := 0; i < cfg.Blocks; i++ {
		lo := int64(i) * blockMs
		hi := lo + blockMs
		if i > 0 && prev+spacingMs > lo {
			lo = prev + spacingMs
		}
		off := lo + rng.Int63n(hi-lo)
		entries[i] = Entry{At: start.Add(time.Duration(off) * time.Millisecond), State: Pending}
		prev = off
	}
	return Set{Day: midnight, Entries: entries}
}

// BlockBounds returns the [start, end) bounds of every block on day.
func BlockBounds(day time.Time, cfg Config) [][2]time.Time {
	if cfg.Blocks <= 0 {
		return nil
	}
	loc := cfg.location()
	midnight := dayStart(day, loc)
	start := time.Date(midnight.Year(), midnight.Month(), midnight.Day(), cfg.WindowStart, 0, 0, 0, loc)
	bl := cfg.BlockLength()
	out := make([][2]time.Time, cfg.Blocks)
	for i := range out {
		bs := start.Add(time.Duration(i) * bl)
		out[i] = [2]time.Time{bs, bs.Add(bl)}
	}
	return out
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func nextDay(t time.Time, loc *time.Location) time.Time {
	return dayStart(t, loc).AddDate(0, 0, 1)
}

func ceilMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if time.Duration(ms)*time.Millisecond < d {
		ms++
	}
	return ms
}
