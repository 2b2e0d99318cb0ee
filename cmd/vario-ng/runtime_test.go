package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vario-ng/internal/config"
	"vario-ng/internal/sim"
)

func TestOpenSource_SimEnabled(t *testing.T) {
	cfg := config.Config{
		Vario: config.VarioConfig{SeaLevelPressurePa: 101325},
		Sim: config.SimConfig{
			Enable:     true,
			BaseAltM:   400,
			AmplitudeM: 15,
			Period:     60 * time.Second,
		},
	}

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		t.Fatalf("openSource: %v", err)
	}
	defer closeSrc()

	fs, ok := src.(*sim.FlightSim)
	if !ok {
		t.Fatalf("source type: got %T want *sim.FlightSim", src)
	}
	if _, err := fs.NextPressure(); err != nil {
		t.Fatalf("NextPressure: %v", err)
	}
	if _, err := fs.NextAcceleration(); err != nil {
		t.Fatalf("NextAcceleration: %v", err)
	}
}

func TestSimProfile_Script(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.yaml")
	body := `
version: 1
flight:
  keyframes:
    - t: 0s
      alt_m: 400
    - t: 10s
      alt_m: 420
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}

	prof, err := simProfile(config.SimConfig{Script: path, Loop: true})
	if err != nil {
		t.Fatalf("simProfile: %v", err)
	}
	scn, ok := prof.(*sim.Scenario)
	if !ok {
		t.Fatalf("profile type: got %T want *sim.Scenario", prof)
	}
	if !scn.Loop {
		t.Fatalf("loop flag not carried over")
	}
	if got := scn.AltitudeM(5 * time.Second); got != 410 {
		t.Fatalf("scripted altitude: got %v want 410", got)
	}
}

func TestSimProfile_ScriptErrors(t *testing.T) {
	if _, err := simProfile(config.SimConfig{Script: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Fatalf("expected error for a missing script")
	}

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o600); err != nil {
		t.Fatalf("write script: %v", err)
	}
	if _, err := simProfile(config.SimConfig{Script: path}); err == nil {
		t.Fatalf("expected error for a script without keyframes")
	}
}

func TestSimProfile_Sinusoid(t *testing.T) {
	prof, err := simProfile(config.SimConfig{BaseAltM: 800, AmplitudeM: 20, Period: 40 * time.Second})
	if err != nil {
		t.Fatalf("simProfile: %v", err)
	}
	if got := prof.AltitudeM(0); got != 800 {
		t.Fatalf("base altitude: got %v want 800", got)
	}
	if got := prof.AltitudeM(10 * time.Second); got != 820 {
		t.Fatalf("crest altitude: got %v want 820", got)
	}
}
