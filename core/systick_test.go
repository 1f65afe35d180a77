package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm32f0demo/device/stm32f0"
)

func TestTickIsTheOnlyWriter(t *testing.T) {
	p := stm32f0.NewPeripherals()
	st := NewSysTick(&p.SYST, nil)

	require.Equal(t, uint32(0), st.Now())
	for i := 0; i < 1234; i++ {
		st.Tick()
	}
	assert.Equal(t, uint32(1234), st.Now())
}

func TestNowAdvancesByTickCountAcrossWraparound(t *testing.T) {
	tests := []struct {
		name  string
		start uint32
		n     int
	}{
		{name: "from zero", start: 0, n: 100},
		{name: "mid range", start: 0x7FFF_FFFF, n: 10},
		{name: "across wraparound", start: ^uint32(0) - 4, n: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stm32f0.NewPeripherals()
			st := NewSysTick(&p.SYST, nil)
			st.ticks.Store(tt.start)

			t0 := st.Now()
			for i := 0; i < tt.n; i++ {
				st.Tick()
			}
			// same-modulus arithmetic holds even when the counter wraps
			assert.Equal(t, uint32(tt.n), st.Now()-t0)
		})
	}
}

func TestDelayReturnsAfterElapsed(t *testing.T) {
	p := stm32f0.NewPeripherals()
	var st *SysTick
	st = NewSysTick(&p.SYST, func() { st.Tick() })

	start := st.Now()
	st.Delay(250)
	assert.GreaterOrEqual(t, st.Now()-start, uint32(250))
}

func TestDelayToleratesCounterWraparound(t *testing.T) {
	p := stm32f0.NewPeripherals()
	var st *SysTick
	st = NewSysTick(&p.SYST, func() { st.Tick() })

	// the counter wraps three ticks into the wait; the unsigned subtraction
	// must keep the elapsed measurement correct
	st.ticks.Store(^uint32(0) - 2)
	start := st.Now()
	st.Delay(10)
	assert.GreaterOrEqual(t, st.Now()-start, uint32(10))
	assert.Less(t, st.Now(), uint32(100)) // proves we actually wrapped
}

func TestInitProgramsOneMillisecondPeriod(t *testing.T) {
	p := stm32f0.NewPeripherals()
	st := NewSysTick(&p.SYST, nil)
	st.Init()

	assert.Equal(t, uint32(SystemClockHz/1000-1), p.SYST.RVR.Get())
	assert.True(t, p.SYST.CSR.HasBits(stm32f0.SYST_CSR_CLKSOURCE))
	assert.True(t, p.SYST.CSR.HasBits(stm32f0.SYST_CSR_ENABLE|stm32f0.SYST_CSR_TICKINT))
}
