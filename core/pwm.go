package core

import "stm32f0demo/device/stm32f0"

// PWM output geometry: 8 MHz / 800 = 10 kHz counting frequency, period 100
// counts = 100 Hz waveform with duty levels 0-99. The 0-99 range is a design
// choice, not a hardware limit.
const (
	pwmPrescale   = 800
	pwmPeriod     = 100
	MaxBrightness = pwmPeriod - 1
)

// LED drives the user LED (PA5, TIM2 channel 1) with a PWM waveform.
type LED struct {
	tim   *stm32f0.TIM
	rcc   *stm32f0.RCC
	gpioa *stm32f0.GPIO
}

// NewLED binds the brightness output to its register blocks.
func NewLED(tim *stm32f0.TIM, rcc *stm32f0.RCC, gpioa *stm32f0.GPIO) *LED {
	return &LED{tim: tim, rcc: rcc, gpioa: gpioa}
}

// Configure routes PA5 to TIM2 CH1, sets the fixed prescaler/period pair,
// selects PWM mode 1 with preload, starts at duty 0 and enables the counter.
// Prescaler and period are never recomputed after this.
func (l *LED) Configure() {
	l.rcc.AHBENR.SetBits(stm32f0.RCC_AHBENR_IOPAEN)
	l.rcc.APB1ENR.SetBits(stm32f0.RCC_APB1ENR_TIM2EN)

	l.gpioa.MODER.ReplaceBits(stm32f0.GPIO_MODER_ALTERNATE, 0x3, stm32f0.GPIO_PA5_MODER_Pos)
	l.gpioa.AFRL.ReplaceBits(stm32f0.GPIO_AF2, 0xF, stm32f0.GPIO_PA5_AFRL_Pos)

	l.tim.PSC.Set(pwmPrescale - 1)
	l.tim.ARR.Set(pwmPeriod - 1)

	l.tim.CCMR1.ClearBits(stm32f0.TIM_CCMR1_OC1M)
	l.tim.CCMR1.SetBits(stm32f0.TIM_CCMR1_OC1M_PWM1)
	l.tim.CCMR1.SetBits(stm32f0.TIM_CCMR1_OC1PE)

	l.tim.CCER.SetBits(stm32f0.TIM_CCER_CC1E)

	l.tim.CCR1.Set(0)

	l.tim.CR1.SetBits(stm32f0.TIM_CR1_CEN)
}

// SetBrightness sets the duty cycle, clamping to MaxBrightness. With preload
// enabled the waveform picks up the new duty at the next period boundary,
// never mid-period. Call from the main loop only.
func (l *LED) SetBrightness(value uint32) {
	if value > MaxBrightness {
		value = MaxBrightness
	}
	l.tim.CCR1.Set(value)
}
