package trigger

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fixedRand always returns min(v, n-1), which pins every pick to a known offset.
type fixedRand int64

func (f fixedRand) Int63n(n int64) int64 {
	if int64(f) >= n {
		return n - 1
	}
	return int64(f)
}

func scenarioConfig() Config {
	return Config{
		Blocks:      3,
		WindowStart: 8,
		WindowEnd:   20,
		MinSpacing:  2 * time.Hour,
		Location:    time.UTC,
	}
}

func at(day time.Time, hh, mm int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, time.UTC)
}

var testDay = time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)

func TestBlockLength(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
		want time.Duration
	}{
		{name: "scenario", cfg: Config{Blocks: 3, WindowStart: 8, WindowEnd: 20}, want: 4 * time.Hour},
		{name: "truncated", cfg: Config{Blocks: 7, WindowStart: 9, WindowEnd: 21}, want: 6171428 * time.Millisecond},
		{name: "single block", cfg: Config{Blocks: 1, WindowStart: 0, WindowEnd: 24}, want: 24 * time.Hour},
		{name: "no blocks", cfg: Config{Blocks: 0, WindowStart: 8, WindowEnd: 20}, want: 0},
		{name: "inverted window", cfg: Config{Blocks: 2, WindowStart: 20, WindowEnd: 8}, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BlockLength(); got != tt.want {
				t.Fatalf("BlockLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "scenario", cfg: scenarioConfig()},
		{name: "spacing equals block", cfg: Config{Blocks: 3, WindowStart: 8, WindowEnd: 20, MinSpacing: 4 * time.Hour}},
		{name: "zero spacing", cfg: Config{Blocks: 5, WindowStart: 0, WindowEnd: 24}},
		{name: "no blocks", cfg: Config{Blocks: 0, WindowStart: 8, WindowEnd: 20}, wantErr: ErrInvalidConfig},
		{name: "start out of range", cfg: Config{Blocks: 1, WindowStart: 24, WindowEnd: 24}, wantErr: ErrInvalidConfig},
		{name: "end out of range", cfg: Config{Blocks: 1, WindowStart: 8, WindowEnd: 25}, wantErr: ErrInvalidConfig},
		{name: "empty window", cfg: Config{Blocks: 1, WindowStart: 8, WindowEnd: 8}, wantErr: ErrInvalidConfig},
		{name: "negative spacing", cfg: Config{Blocks: 1, WindowStart: 8, WindowEnd: 9, MinSpacing: -time.Second}, wantErr: ErrInvalidConfig},
		{name: "survey id zero", cfg: Config{Blocks: 1, WindowStart: 8, WindowEnd: 9, SurveyID: 0}},
		{name: "negative survey id", cfg: Config{Blocks: 1, WindowStart: 8, WindowEnd: 9, SurveyID: NoSurvey}, wantErr: ErrInvalidConfig},
		{name: "spacing too large", cfg: Config{Blocks: 3, WindowStart: 8, WindowEnd: 20, MinSpacing: 4*time.Hour + time.Millisecond}, wantErr: ErrSpacingTooLarge},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateScenario(t *testing.T) {
	t.Parallel()
	cfg := scenarioConfig()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		set, err := Generate(at(testDay, 7, 0), cfg, rng)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !set.Day.Equal(testDay) {
			t.Fatalf("Day = %v, want %v", set.Day, testDay)
		}
		if len(set.Entries) != 3 {
			t.Fatalf("len(Entries) = %d, want 3", len(set.Entries))
		}
		bounds := [][2]time.Time{
			{at(testDay, 8, 0), at(testDay, 12, 0)},
			{at(testDay, 12, 0), at(testDay, 16, 0)},
			{at(testDay, 16, 0), at(testDay, 20, 0)},
		}
		for i, e := range set.Entries {
			if !e.Pending() {
				t.Fatalf("entry %d not pending", i)
			}
			if e.At.Before(bounds[i][0]) || !e.At.Before(bounds[i][1]) {
				t.Fatalf("entry %d = %v outside [%v, %v)", i, e.At, bounds[i][0], bounds[i][1])
			}
			if i > 0 && e.At.Sub(set.Entries[i-1].At) < 2*time.Hour {
				t.Fatalf("entries %d and %d closer than 2h: %v, %v", i-1, i, set.Entries[i-1].At, e.At)
			}
		}
	}
}

func TestGenerateFixedRand(t *testing.T) {
	t.Parallel()
	set, err := Generate(testDay, scenarioConfig(), fixedRand(0))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []time.Time{at(testDay, 8, 0), at(testDay, 12, 0), at(testDay, 16, 0)}
	for i, e := range set.Entries {
		if !e.At.Equal(want[i]) {
			t.Fatalf("entry %d = %v, want %v", i, e.At, want[i])
		}
	}

	// Picking the last millisecond of block 0 pushes block 1 forward by the spacing.
	late, err := Generate(testDay, scenarioConfig(), fixedRand(1<<62))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got, want := late.Entries[0].At, at(testDay, 12, 0).Add(-time.Millisecond); !got.Equal(want) {
		t.Fatalf("entry 0 = %v, want %v", got, want)
	}
	if got := late.Entries[1].At.Sub(late.Entries[0].At); got < 2*time.Hour {
		t.Fatalf("gap = %v, want >= 2h", got)
	}
}

func TestGenerateSpacingEqualsBlockLength(t *testing.T) {
	t.Parallel()
	cfg := Config{Blocks: 4, WindowStart: 8, WindowEnd: 20, MinSpacing: 3 * time.Hour, Location: time.UTC}
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 500; run++ {
		set, err := Generate(testDay, cfg, rng)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		for i := 1; i < len(set.Entries); i++ {
			if gap := set.Entries[i].At.Sub(set.Entries[i-1].At); gap < cfg.MinSpacing {
				t.Fatalf("run %d: gap %d = %v < %v", run, i, gap, cfg.MinSpacing)
			}
		}
	}
}

func TestGenerateRejectsInvalid(t *testing.T) {
	t.Parallel()
	cfg := scenarioConfig()
	cfg.MinSpacing = 5 * time.Hour
	if _, err := Generate(testDay, cfg, fixedRand(0)); !errors.Is(err, ErrSpacingTooLarge) {
		t.Fatalf("Generate error = %v, want ErrSpacingTooLarge", err)
	}
	if _, err := Generate(testDay, scenarioConfig(), nil); err == nil {
		t.Fatal("expected error for nil rand")
	}
}

func TestGenerateUsesConfigLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)
	cfg := scenarioConfig()
	cfg.Location = loc

	// 20:00 UTC on the 13th is already the 14th in UTC+7.
	set, err := Generate(time.Date(2024, time.March, 13, 20, 0, 0, 0, time.UTC), cfg, fixedRand(0))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := time.Date(2024, time.March, 14, 8, 0, 0, 0, loc)
	if !set.Entries[0].At.Equal(want) {
		t.Fatalf("entry 0 = %v, want %v", set.Entries[0].At, want)
	}
}

func TestGenerateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("one spaced, ascending instant per block", prop.ForAll(
		func(seed int64, blocks, start, width, spacingPermille int) bool {
			end := start + width
			if end > 24 {
				end = 24
			}
			cfg := Config{Blocks: blocks, WindowStart: start, WindowEnd: end, Location: time.UTC}
			bl := cfg.BlockLength()
			if bl <= 0 {
				return true
			}
			cfg.MinSpacing = time.Duration(int64(bl) / 1000 * int64(spacingPermille))

			set, err := Generate(testDay, cfg, rand.New(rand.NewSource(seed)))
			if err != nil {
				return false
			}
			if len(set.Entries) != blocks {
				return false
			}
			bounds := BlockBounds(testDay, cfg)
			for i, e := range set.Entries {
				if !e.Pending() {
					return false
				}
				if e.At.Before(bounds[i][0]) || !e.At.Before(bounds[i][1]) {
					return false
				}
				if i == 0 {
					continue
				}
				prev := set.Entries[i-1].At
				if !e.At.After(prev) {
					return false
				}
				if e.At.Sub(prev) < cfg.MinSpacing {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 12),
		gen.IntRange(0, 23),
		gen.IntRange(1, 24),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
