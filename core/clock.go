package core

import "stm32f0demo/device/stm32f0"

// SystemClockHz is the system clock frequency after Clock.Configure. All
// frequency-derived values (baud divisor, PWM prescaler, SysTick reload)
// assume it.
const SystemClockHz = 8_000_000

// Clock brings the system clock out of reset.
type Clock struct {
	rcc  *stm32f0.RCC
	spin Spin
}

// NewClock binds the clock controller to the RCC register block.
func NewClock(rcc *stm32f0.RCC, spin Spin) *Clock {
	return &Clock{rcc: rcc, spin: spin}
}

// Configure enables the internal 8 MHz oscillator (HSI), waits for it to
// stabilize, then switches the system clock mux to it and waits for the
// status bits to confirm the switch. Idempotent if HSI is already selected.
// There is deliberately no timeout: a clock that never comes up is
// unrecoverable at this layer.
func (c *Clock) Configure() {
	c.rcc.CR.SetBits(stm32f0.RCC_CR_HSION)
	c.spin.Until(func() bool {
		return c.rcc.CR.HasBits(stm32f0.RCC_CR_HSIRDY)
	})

	c.rcc.CFGR.ClearBits(stm32f0.RCC_CFGR_SW)
	c.rcc.CFGR.SetBits(stm32f0.RCC_CFGR_SW_HSI)
	c.spin.Until(func() bool {
		return c.rcc.CFGR.Get()&stm32f0.RCC_CFGR_SWS == stm32f0.RCC_CFGR_SWS_HSI
	})
}
