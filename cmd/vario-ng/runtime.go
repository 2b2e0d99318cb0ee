package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vario-ng/internal/audio"
	"vario-ng/internal/config"
	"vario-ng/internal/frontend"
	"vario-ng/internal/sim"
	"vario-ng/internal/vario"
)

// run wires the pipeline and blocks until the context is cancelled.
func run(cfg config.Config, stdout io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return errExit("sensor init", err)
	}
	defer closeSrc()

	store := vario.NewStore()
	svc := vario.New(cfg.Service(), src, store)

	profile, err := audio.NewProfile(cfg.AudioProfile())
	if err != nil {
		return errExit("audio profile", err)
	}
	out, err := audio.OpenOutput(cfg.AudioOutput())
	if err != nil {
		return errExit("audio output", err)
	}
	defer out.Close()
	engine := audio.NewEngine(cfg.Engine(), profile, store, out)

	log.Printf("vario-ng starting")
	if cfg.Sim.Enable {
		log.Printf("sample source: simulator")
	} else {
		log.Printf("sample source: i2c bus %d", cfg.Sensors.I2CBus)
	}
	log.Printf("audio: backend=%s tick=%s", cfg.AudioOutput().Backend, cfg.Audio.TickPeriod)

	if err := svc.Start(ctx); err != nil {
		return errExit("vario service", err)
	}
	defer svc.Close()
	if err := engine.Start(ctx); err != nil {
		return errExit("audio engine", err)
	}
	defer engine.Close()

	if cfg.Frontend.Enable {
		console := frontend.NewConsole(frontend.Config{Period: cfg.Frontend.Period}, store, stdout)
		if err := console.Start(ctx); err != nil {
			return errExit("frontend", err)
		}
		defer console.Close()
	}

	<-ctx.Done()
	log.Printf("vario-ng stopping")
	return nil
}

func openSource(cfg config.Config) (vario.SampleSource, func(), error) {
	if cfg.Sim.Enable {
		prof, err := simProfile(cfg.Sim)
		if err != nil {
			return nil, nil, err
		}
		return &sim.FlightSim{
			Profile:            prof,
			SeaLevelPressurePa: cfg.Vario.SeaLevelPressurePa,
			TiltDeg:            cfg.Sim.TiltDeg,
		}, func() {}, nil
	}

	hw, err := vario.OpenHardware(cfg.Hardware())
	if err != nil {
		return nil, nil, err
	}
	return hw, func() { _ = hw.Close() }, nil
}

func simProfile(sc config.SimConfig) (sim.Profile, error) {
	if sc.Script != "" {
		script, err := sim.LoadFlightScript(sc.Script)
		if err != nil {
			return nil, err
		}
		scn, err := sim.NewScenario(script)
		if err != nil {
			return nil, err
		}
		scn.Loop = sc.Loop
		return scn, nil
	}
	return sim.Sinusoid{
		BaseAltM:   sc.BaseAltM,
		AmplitudeM: sc.AmplitudeM,
		Period:     sc.Period,
	}, nil
}
