package core

import (
	"sync/atomic"

	"stm32f0demo/device/stm32f0"
)

// SysTick is the millisecond timebase. A periodic hardware interrupt calls
// Tick once per millisecond; everything else only reads the counter.
type SysTick struct {
	st    *stm32f0.SysTick
	spin  Spin
	ticks atomic.Uint32
}

// NewSysTick binds the timebase to the SysTick register block.
func NewSysTick(st *stm32f0.SysTick, spin Spin) *SysTick {
	return &SysTick{st: st, spin: spin}
}

// Init configures the 1 ms periodic interrupt: processor clock source,
// reload every 8000 cycles (1 ms at 8 MHz), counter and interrupt enabled.
func (t *SysTick) Init() {
	t.st.CSR.SetBits(stm32f0.SYST_CSR_CLKSOURCE)
	t.st.RVR.Set(SystemClockHz/1000 - 1)
	t.st.CVR.Set(0)
	t.st.CSR.SetBits(stm32f0.SYST_CSR_ENABLE | stm32f0.SYST_CSR_TICKINT)
}

// Tick is the interrupt handler. It is the only writer of the counter and
// must stay a single atomic increment so the interrupt cost is a few cycles.
func (t *SysTick) Tick() {
	t.ticks.Add(1)
}

// Now returns the free-running millisecond counter. It wraps after ~49.7
// days; consumers must compare with Now()-start, never with Now() >= end.
func (t *SysTick) Now() uint32 {
	return t.ticks.Load()
}

// Delay blocks until ms milliseconds have elapsed. The unsigned subtraction
// stays correct across a counter wraparound.
func (t *SysTick) Delay(ms uint32) {
	start := t.Now()
	t.spin.Until(func() bool {
		return t.Now()-start >= ms
	})
}
