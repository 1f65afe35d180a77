package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stm32f0demo/core"
	"stm32f0demo/device/stm32f0"
	"stm32f0demo/sim"
)

func TestClockConfigureSelectsHSI(t *testing.T) {
	board := sim.New()
	p := board.Peripherals()

	clk := core.NewClock(&p.RCC, board.Step)
	clk.Configure()

	assert.True(t, p.RCC.CR.HasBits(stm32f0.RCC_CR_HSION))
	assert.True(t, p.RCC.CR.HasBits(stm32f0.RCC_CR_HSIRDY))
	assert.Equal(t, uint32(stm32f0.RCC_CFGR_SWS_HSI), p.RCC.CFGR.Get()&stm32f0.RCC_CFGR_SWS)
}

func TestClockConfigureIsIdempotent(t *testing.T) {
	board := sim.New()
	p := board.Peripherals()

	clk := core.NewClock(&p.RCC, board.Step)
	clk.Configure()
	before := p.RCC.CFGR.Get()

	clk.Configure()
	assert.Equal(t, before, p.RCC.CFGR.Get())
	assert.True(t, p.RCC.CR.HasBits(stm32f0.RCC_CR_HSION|stm32f0.RCC_CR_HSIRDY))
}
