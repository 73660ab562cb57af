package config_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/shiresim/internal/config"
	"github.com/sarchlab/shiresim/internal/hart"
)

func wantPanic(t *testing.T, msg string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("%s: expected panic, got none", msg)
		}
	}()
	fn()
}

// TestChipBuilderValidation mirrors zeonica/config.DeviceBuilder's own
// validate-or-panic style: out-of-range topology or DRAM size panics
// rather than building a malformed Chip (SPEC_FULL.md §2.1
// "Configuration").
func TestChipBuilderValidation(t *testing.T) {
	wantPanic(t, "io shire out of range", func() {
		config.ChipBuilder{}.WithShires(2, 5, nil)
	})

	wantPanic(t, "negative io shire", func() {
		config.ChipBuilder{}.WithShires(2, -1, nil)
	})

	for _, bad := range []int{0, 1, 7, 12, 64} {
		wantPanic(t, "invalid dram size", func() {
			config.ChipBuilder{}.WithDRAMSize(bad)
		})
	}

	for _, good := range []int{8, 16, 24, 32} {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("WithDRAMSize(%d) panicked: %v", good, r)
				}
			}()
			config.ChipBuilder{}.WithDRAMSize(good)
		}()
	}

	wantPanic(t, "Build before WithShires", func() {
		config.ChipBuilder{}.WithDRAMSize(8).Build("chip")
	})

	wantPanic(t, "Build before WithDRAMSize", func() {
		config.ChipBuilder{}.WithShires(1, 0, nil).Build("chip")
	})
}

// TestChipBuilderBuild checks the assembled Chip's reset-held invariant:
// every hart starts Unavailable except the I/O shire's service
// processor (spec §1 "reset-held").
func TestChipBuilderBuild(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := config.ChipBuilder{}.
		WithEngine(sim.NewSerialEngine()).
		WithFreq(1 * sim.GHz).
		WithLogger(log).
		WithShires(1, 0, nil).
		WithDRAMSize(8).
		Build("test")

	if c.Harts[0].State != hart.StateRunning {
		t.Errorf("service processor hart state = %v, want Running", c.Harts[0].State)
	}
	for i := 1; i < len(c.Harts); i++ {
		if c.Harts[i].State != hart.StateUnavailable {
			t.Errorf("hart %d state = %v, want Unavailable", i, c.Harts[i].State)
		}
	}
}
