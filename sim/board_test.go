package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stm32f0demo/device/stm32f0"
)

func TestAnalogModelInvertsCalibrationFormula(t *testing.T) {
	tests := []struct {
		name string
		temp float32
		want uint16
	}{
		{name: "calibration point", temp: 30, want: 1750},
		{name: "hot", temp: 40, want: 1750 + 53},  // +10 * 5.336, truncated
		{name: "cold", temp: 20, want: 1750 - 54}, // 1696.64 truncates down
		{name: "clamps low", temp: -500, want: 0},
		{name: "clamps high", temp: 500, want: 4095},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(WithDieTemp(tt.temp))
			assert.Equal(t, tt.want, b.sampleRaw())
		})
	}
}

func TestDriftMovesTheSample(t *testing.T) {
	b := New(WithDieTemp(30), WithDrift(10, 40*time.Millisecond))

	base := b.sampleRaw()
	b.nowUS = 10_000 // quarter period: drift at full amplitude
	assert.NotEqual(t, base, b.sampleRaw())
}

func TestADCWritesIgnoredWhileClockGateOff(t *testing.T) {
	b := New()
	p := b.Peripherals()

	p.ADC.CR.SetBits(stm32f0.ADC_CR_ADCAL)
	assert.Zero(t, p.ADC.CR.Get(), "write must be dropped with APB2 clock off")

	p.RCC.APB2ENR.SetBits(stm32f0.RCC_APB2ENR_ADCEN)
	p.ADC.CR.SetBits(stm32f0.ADC_CR_ADCAL)
	assert.True(t, p.ADC.CR.HasBits(stm32f0.ADC_CR_ADCAL))
}

func TestQueueInputSpacesBytesByFrameTime(t *testing.T) {
	b := New()
	p := b.Peripherals()
	p.USART2.CR1.SetBits(stm32f0.USART_CR1_UE | stm32f0.USART_CR1_RE)

	b.QueueInput(0, "ab")
	assert.True(t, p.USART2.ISR.HasBits(stm32f0.USART_ISR_RXNE))
	assert.Equal(t, uint32('a'), p.USART2.RDR.Get())
	assert.False(t, p.USART2.ISR.HasBits(stm32f0.USART_ISR_RXNE), "second byte still on the wire")

	for b.Now() < 2*time.Millisecond {
		b.Step()
	}
	assert.True(t, p.USART2.ISR.HasBits(stm32f0.USART_ISR_RXNE))
	assert.Equal(t, uint32('b'), p.USART2.RDR.Get())
}

func TestTransmitTakesOneFrameAtConfiguredBaud(t *testing.T) {
	b := New()
	p := b.Peripherals()
	p.USART2.BRR.Set(0x341)
	p.USART2.CR1.SetBits(stm32f0.USART_CR1_UE | stm32f0.USART_CR1_TE)

	p.USART2.TDR.Set('x')
	assert.False(t, p.USART2.ISR.HasBits(stm32f0.USART_ISR_TXE))
	assert.Empty(t, b.Output())

	start := b.Now()
	for !p.USART2.ISR.HasBits(stm32f0.USART_ISR_TXE) {
		b.Step()
	}
	elapsed := b.Now() - start
	assert.Equal(t, "x", b.Output())
	// 10 bits at ~9600 baud
	assert.InDelta(t, float64(1041), float64(elapsed.Microseconds()), 25)
}

func TestSysTickFiresEveryMillisecond(t *testing.T) {
	b := New()
	p := b.Peripherals()

	ticks := 0
	b.OnSysTick(func() { ticks++ })

	p.SYST.CSR.SetBits(stm32f0.SYST_CSR_CLKSOURCE)
	p.SYST.RVR.Set(7999)
	p.SYST.CSR.SetBits(stm32f0.SYST_CSR_ENABLE | stm32f0.SYST_CSR_TICKINT)

	for b.Now() < 10*time.Millisecond {
		b.Step()
	}
	assert.Equal(t, 10, ticks)
}
