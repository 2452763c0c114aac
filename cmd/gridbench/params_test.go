package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/swarm/config"
)

func TestParamVector_NormalizeRoundTrip(t *testing.T) {
	pv := NewParamVector()
	raw := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(raw[i]-back[i]) > 1e-9 {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, back[i], raw[i])
		}
	}
}

func TestParamVector_Clamp(t *testing.T) {
	pv := NewParamVector()
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"in range", []float64{16, 0.1, 4}, []float64{16, 0.1, 4}},
		{"below", []float64{-3, -1, 0}, []float64{4, 0, 1}},
		{"above", []float64{500, 2, 99}, []float64{128, 0.5, 16}},
		{"rounds workers", []float64{16, 0.1, 3.6}, []float64{16, 0.1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pv.Clamp(tt.in)
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParamVector_ApplyExtract(t *testing.T) {
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	pv.ApplyToConfig(cfg, []float64{24, 0.2, 2.2})

	if cfg.Grid.CellSize != 24 || cfg.Grid.PaddingRatio != 0.2 || cfg.Physics.Workers != 2 {
		t.Errorf("ApplyToConfig: grid %+v workers %d", cfg.Grid, cfg.Physics.Workers)
	}
	got := pv.ExtractFromConfig(cfg)
	want := []float64{24, 0.2, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: got %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
}
