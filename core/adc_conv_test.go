package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stm32f0demo/device/stm32f0"
)

// Conversion vectors computed by hand against
//
//	temp = (raw*VddAppli/VddCalib - cal30) * 1000 / AvgSlope + 30
//
// with truncation toward zero applied in exactly that order.
func TestReadTemperatureConversion(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint32
		cal30 uint32
		want  int32
	}{
		{name: "zero raw, zero cal is the 30 degC reference", raw: 0, cal30: 0, want: 30},
		{name: "raw at calibration point", raw: 1750, cal30: 1750, want: 30},
		{name: "positive fraction truncates toward zero", raw: 1755, cal30: 1750, want: 30}, // 5000/5336 -> 0
		{name: "negative fraction truncates toward zero", raw: 1747, cal30: 1750, want: 30}, // -3000/5336 -> 0
		{name: "exact positive step", raw: 1750 + 27, cal30: 1750, want: 35},                // 27000/5336 = 5.06 -> 5
		{name: "exact negative step", raw: 1750 - 27, cal30: 1750, want: 25},
		{name: "deep negative", raw: 1000, cal30: 1750, want: -110}, // -750000/5336 = -140.5 -> -140
		{name: "full scale", raw: 4095, cal30: 1750, want: 469},     // 2345000/5336 = 439.4 -> 439
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stm32f0.NewPeripherals()
			p.ADC.DR.Store(tt.raw)
			p.Cal.TSCal30.Store(tt.cal30)

			s := NewTempSensor(&p.ADC, &p.RCC, &p.Cal, NewSysTick(&p.SYST, nil), nil)
			assert.Equal(t, tt.want, s.ReadTemperature())
		})
	}
}

func TestReadTemperatureNeverBlocks(t *testing.T) {
	p := stm32f0.NewPeripherals()
	s := NewTempSensor(&p.ADC, &p.RCC, &p.Cal, NewSysTick(&p.SYST, nil), nil)

	// no configuration, no conversions: returns whatever is latched
	p.Cal.TSCal30.Store(0)
	assert.Equal(t, int32(30), s.ReadTemperature())
}
