package vario

import (
	"fmt"
	"time"
)

// PressureSample is one raw barometer reading.
type PressureSample struct {
	Time       time.Time
	PressurePa float64
	TempC      float64
}

// AccelSample is one raw accelerometer reading in m/s^2, sensor frame.
type AccelSample struct {
	Time       time.Time
	Ax, Ay, Az float64
}

// SampleSource delivers timestamped raw readings from the sensor pair.
//
// Implementations: HardwareSource (MS5611 + MPU-6050 over I2C) and
// sim.FlightSim. A read may block for the duration of a bus transaction;
// only the sampling service calls it, never the audio engine.
type SampleSource interface {
	NextPressure() (PressureSample, error)
	NextAcceleration() (AccelSample, error)
}

// SensorFault marks a bus error or a physically implausible reading.
// Per-sample faults are absorbed by the pipeline: the previous good value
// is held and the fault is counted, the stream keeps running.
type SensorFault struct {
	Sensor string // "baro" or "imu"
	Reason string
	Err    error
}

func (f *SensorFault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s fault: %s: %v", f.Sensor, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s fault: %s", f.Sensor, f.Reason)
}

func (f *SensorFault) Unwrap() error { return f.Err }
