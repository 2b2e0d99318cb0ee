package vario

import (
	"fmt"
	"time"

	"vario-ng/internal/i2c"
	"vario-ng/internal/sensors/mpu6050"
	"vario-ng/internal/sensors/ms5611"
)

// HardwareConfig selects the I2C bus and device addresses.
type HardwareConfig struct {
	I2CBus   int
	BaroAddr uint16
	IMUAddr  uint16
}

// HardwareSource reads the MS5611 barometer and MPU-6050 IMU over I2C.
// Reads block for the bus transaction; errors are wrapped as *SensorFault.
type HardwareSource struct {
	cfg HardwareConfig

	bus  *i2c.Bus
	baro *ms5611.Device
	imu  *mpu6050.Device

	// Best-effort recovery: after repeated baro failures the device is
	// re-initialized, rate-limited.
	baroFailures int
	lastReinitAt time.Time
}

func OpenHardware(cfg HardwareConfig) (*HardwareSource, error) {
	if cfg.I2CBus == 0 {
		cfg.I2CBus = 1
	}
	if cfg.BaroAddr == 0 {
		cfg.BaroAddr = ms5611.DefaultAddress()
	}
	if cfg.IMUAddr == 0 {
		cfg.IMUAddr = mpu6050.DefaultAddress()
	}

	busPath := fmt.Sprintf("/dev/i2c-%d", cfg.I2CBus)
	bus, err := i2c.Open(busPath)
	if err != nil {
		return nil, fmt.Errorf("vario: open %s: %w", busPath, err)
	}

	baro, err := ms5611.New(bus.Dev(cfg.BaroAddr))
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("vario: baro init: %w", err)
	}
	imu, err := mpu6050.New(bus.Dev(cfg.IMUAddr))
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("vario: imu init: %w", err)
	}

	return &HardwareSource{cfg: cfg, bus: bus, baro: baro, imu: imu}, nil
}

func (h *HardwareSource) Close() error {
	if h == nil || h.bus == nil {
		return nil
	}
	err := h.bus.Close()
	h.bus = nil
	return err
}

func (h *HardwareSource) NextPressure() (PressureSample, error) {
	tempC, pressPa, err := h.baro.Read()
	if err != nil {
		h.baroFailures++
		h.maybeReinitBaro()
		return PressureSample{}, &SensorFault{Sensor: "baro", Reason: "read failed", Err: err}
	}
	h.baroFailures = 0
	return PressureSample{Time: time.Now().UTC(), PressurePa: pressPa, TempC: tempC}, nil
}

func (h *HardwareSource) NextAcceleration() (AccelSample, error) {
	s, err := h.imu.Read()
	if err != nil {
		return AccelSample{}, &SensorFault{Sensor: "imu", Reason: "read failed", Err: err}
	}
	return AccelSample{Time: s.Time.UTC(), Ax: s.Ax, Ay: s.Ay, Az: s.Az}, nil
}

func (h *HardwareSource) maybeReinitBaro() {
	if h.baroFailures < 10 || time.Since(h.lastReinitAt) < 2*time.Second {
		return
	}
	h.lastReinitAt = time.Now().UTC()
	if h.bus == nil {
		return
	}
	if b, err := ms5611.New(h.bus.Dev(h.cfg.BaroAddr)); err == nil {
		h.baro = b
		h.baroFailures = 0
	}
}
