package core

import "stm32f0demo/device/stm32f0"

// Temperature sensor calibration. TS_CAL1 was measured by the factory at
// 30 degC with VDDA = 3.3 V; AvgSlopeUV is the sensor slope in uV/degC from
// the datasheet.
const (
	VddApplimV = 3300
	VddCalibmV = 3300
	AvgSlopeUV = 5336
)

// TempSensor is the internal-temperature acquisition pipeline: ADC1 in
// continuous free-running mode against the internal sensor channel.
type TempSensor struct {
	adc  *stm32f0.ADC
	rcc  *stm32f0.RCC
	cal  *stm32f0.FactoryCal
	tb   *SysTick
	spin Spin
}

// NewTempSensor binds the pipeline to its register blocks. tb supplies the
// fixed stabilization delays during Configure.
func NewTempSensor(adc *stm32f0.ADC, rcc *stm32f0.RCC, cal *stm32f0.FactoryCal, tb *SysTick, spin Spin) *TempSensor {
	return &TempSensor{adc: adc, rcc: rcc, cal: cal, tb: tb, spin: spin}
}

// Configure brings the converter up in continuous mode. The order is fixed
// by the hardware: the converter must be disabled to calibrate, calibrated
// before the sensor channel is selected, and enabled before conversion
// starts. Each ready-flag wait is unbounded; the latencies are hardware
// constants. Safe to call again on an already-running converter.
func (s *TempSensor) Configure() {
	s.rcc.APB2ENR.SetBits(stm32f0.RCC_APB2ENR_ADCEN)

	if s.adc.CR.HasBits(stm32f0.ADC_CR_ADEN) {
		s.adc.CR.SetBits(stm32f0.ADC_CR_ADDIS)
		s.spin.Until(func() bool {
			return !s.adc.CR.HasBits(stm32f0.ADC_CR_ADEN)
		})
	}

	s.adc.CR.SetBits(stm32f0.ADC_CR_ADCAL)
	s.spin.Until(func() bool {
		return !s.adc.CR.HasBits(stm32f0.ADC_CR_ADCAL)
	})

	s.adc.CCR.SetBits(stm32f0.ADC_CCR_TSEN)
	s.adc.SMPR.SetBits(stm32f0.ADC_SMPR_SMP) // 239.5 cycles, longest sampling time

	s.tb.Delay(100) // sensor stabilization

	s.adc.CFGR1.SetBits(stm32f0.ADC_CFGR1_CONT)
	s.adc.CHSELR.SetBits(stm32f0.ADC_CHSELR_CHSEL16)

	s.adc.CR.SetBits(stm32f0.ADC_CR_ADEN)
	s.spin.Until(func() bool {
		return s.adc.CR.HasBits(stm32f0.ADC_CR_ADEN)
	})

	s.tb.Delay(20)

	s.adc.CR.SetBits(stm32f0.ADC_CR_ADSTART)
}

// ReadTemperature converts the latest completed sample to signed integer
// degrees Celsius:
//
//	temp = (raw*VddAppli/VddCalib - TS_CAL1) * 1000 / AvgSlope + 30
//
// Integer arithmetic in exactly this order; division truncates toward zero.
// Never blocks: it returns whatever sample is latched, which may be stale by
// up to one conversion period.
func (s *TempSensor) ReadTemperature() int32 {
	raw := int32(s.adc.DR.Get())
	return (raw*VddApplimV/VddCalibmV-int32(s.cal.TSCal30.Get()))*1000/AvgSlopeUV + 30
}
