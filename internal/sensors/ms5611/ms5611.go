package ms5611

import (
	"fmt"
	"time"

	"vario-ng/internal/i2c"
)

var sleep = time.Sleep

// Minimal MS5611 driver (I2C mode).
//
// Supports reset, PROM calibration readout with CRC4 check, and reading
// second-order compensated temperature/pressure.

const (
	addrDefault = 0x77 // CSB low; 0x76 when CSB is pulled high

	cmdReset   = 0x1E
	cmdADCRead = 0x00
	cmdPROM    = 0xA0 // 8 words at 0xA0, 0xA2, ... 0xAE

	// OSR=4096: best resolution, ~9 ms conversion.
	cmdConvertD1 = 0x48
	cmdConvertD2 = 0x58

	convWait = 10 * time.Millisecond
)

type Device struct {
	dev cmdIO

	// PROM calibration coefficients C1..C6 (prom words 1..6).
	c1, c2, c3, c4, c5, c6 int64
}

type cmdIO interface {
	WriteCmd(cmd byte) error
	ReadReg(cmd byte, dst []byte) error
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("ms5611: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev cmdIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("ms5611: dev is nil")
	}
	d := &Device{dev: dev}

	if err := d.dev.WriteCmd(cmdReset); err != nil {
		return nil, fmt.Errorf("ms5611: reset failed: %w", err)
	}
	// Datasheet: reload of PROM after reset takes about 2.8 ms.
	sleep(3 * time.Millisecond)

	var prom [8]uint16
	for i := 0; i < 8; i++ {
		var buf [2]byte
		if err := d.dev.ReadReg(cmdPROM+byte(2*i), buf[:]); err != nil {
			return nil, fmt.Errorf("ms5611: prom read word %d failed: %w", i, err)
		}
		prom[i] = uint16(buf[0])<<8 | uint16(buf[1])
	}

	if got, want := crc4(prom), byte(prom[7]&0x000F); got != want {
		return nil, fmt.Errorf("ms5611: prom crc mismatch (got=0x%X want=0x%X)", got, want)
	}

	d.c1 = int64(prom[1])
	d.c2 = int64(prom[2])
	d.c3 = int64(prom[3])
	d.c4 = int64(prom[4])
	d.c5 = int64(prom[5])
	d.c6 = int64(prom[6])

	// An all-zero or all-ones PROM passes CRC but is not a working sensor.
	if d.c1 == 0 || d.c5 == 0 {
		return nil, fmt.Errorf("ms5611: prom calibration invalid (c1=%d c5=%d)", d.c1, d.c5)
	}

	return d, nil
}

// Read triggers temperature and pressure conversions and returns the
// compensated values: temperature in degrees C and pressure in Pa.
//
// Each call blocks for roughly two conversion times (~20 ms at OSR=4096).
func (d *Device) Read() (tempC float64, pressPa float64, err error) {
	if d == nil {
		return 0, 0, fmt.Errorf("ms5611: device is nil")
	}

	d2, err := d.convert(cmdConvertD2)
	if err != nil {
		return 0, 0, fmt.Errorf("ms5611: temperature conversion failed: %w", err)
	}
	d1, err := d.convert(cmdConvertD1)
	if err != nil {
		return 0, 0, fmt.Errorf("ms5611: pressure conversion failed: %w", err)
	}

	temp, press := compensate(d1, d2, d.c1, d.c2, d.c3, d.c4, d.c5, d.c6)
	return temp, press, nil
}

func (d *Device) convert(cmd byte) (int64, error) {
	if err := d.dev.WriteCmd(cmd); err != nil {
		return 0, err
	}
	sleep(convWait)

	var buf [3]byte
	if err := d.dev.ReadReg(cmdADCRead, buf[:]); err != nil {
		return 0, err
	}
	v := int64(buf[0])<<16 | int64(buf[1])<<8 | int64(buf[2])
	if v == 0 {
		// ADC read before conversion finished returns 0.
		return 0, fmt.Errorf("adc returned 0 (conversion not ready)")
	}
	return v, nil
}

// compensate implements the MS5611 datasheet first- and second-order
// compensation. D1/D2 are raw pressure/temperature ADC values.
//
// Returned pressure is in Pa (the datasheet's 0.01 mbar unit), temperature
// in degrees C.
func compensate(d1, d2, c1, c2, c3, c4, c5, c6 int64) (tempC float64, pressPa float64) {
	dT := d2 - c5<<8
	temp := 2000 + dT*c6>>23

	off := c2<<16 + c4*dT>>7
	sens := c1<<15 + c3*dT>>8

	// Second-order compensation below 20 C.
	if temp < 2000 {
		t2 := dT * dT >> 31
		off2 := 5 * (temp - 2000) * (temp - 2000) / 2
		sens2 := 5 * (temp - 2000) * (temp - 2000) / 4
		if temp < -1500 {
			off2 += 7 * (temp + 1500) * (temp + 1500)
			sens2 += 11 * (temp + 1500) * (temp + 1500) / 2
		}
		temp -= t2
		off -= off2
		sens -= sens2
	}

	p := (d1*sens>>21 - off) >> 15
	return float64(temp) / 100.0, float64(p)
}

// crc4 implements the PROM CRC from the MS5611 application note (AN520).
// The expected CRC sits in the low 4 bits of prom word 7.
func crc4(prom [8]uint16) byte {
	crcRead := prom[7]
	prom[7] &= 0xFF00

	var rem uint16
	for i := 0; i < 16; i++ {
		if i%2 == 1 {
			rem ^= prom[i>>1] & 0x00FF
		} else {
			rem ^= prom[i>>1] >> 8
		}
		for b := 8; b > 0; b-- {
			if rem&0x8000 != 0 {
				rem = (rem << 1) ^ 0x3000
			} else {
				rem <<= 1
			}
		}
	}
	prom[7] = crcRead
	return byte((rem >> 12) & 0x0F)
}
