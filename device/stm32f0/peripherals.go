package stm32f0

// Register layout and bit definitions follow RM0360 (STM32F070x6/xB
// reference manual) and PM0215 (Cortex-M0 programming manual), matching the
// subset this firmware touches.

// RCC is the reset and clock control block.
type RCC struct {
	CR      Register32 // clock control: oscillator enable/ready
	CFGR    Register32 // clock configuration: system clock mux
	AHBENR  Register32 // AHB peripheral clock enable
	APB2ENR Register32 // APB2 peripheral clock enable
	APB1ENR Register32 // APB1 peripheral clock enable
}

// ADC is the analog-to-digital converter block (ADC1).
type ADC struct {
	CR     Register32 // control: enable, disable, calibrate, start
	CFGR1  Register32 // configuration: conversion mode
	SMPR   Register32 // sampling time
	CHSELR Register32 // channel selection
	CCR    Register32 // common configuration: temperature sensor enable
	DR     Register32 // data: latest completed conversion
}

// GPIO is a general-purpose IO port block.
type GPIO struct {
	MODER Register32 // pin mode (input/output/alternate/analog)
	AFRL  Register32 // alternate function selection, pins 0-7
}

// USART is an asynchronous serial transceiver block.
type USART struct {
	CR1 Register32 // control 1: enable, word length, parity, TE/RE
	CR2 Register32 // control 2: stop bits
	BRR Register32 // baud rate divisor
	ISR Register32 // status: TXE, TC, RXNE
	RDR Register32 // receive data
	TDR Register32 // transmit data
}

// TIM is a general-purpose timer block.
type TIM struct {
	CR1   Register32 // control: counter enable
	CCMR1 Register32 // capture/compare mode, channels 1-2
	CCER  Register32 // capture/compare output enable
	PSC   Register32 // prescaler
	ARR   Register32 // auto-reload (period)
	CCR1  Register32 // compare value, channel 1
}

// SysTick is the Cortex-M0 24-bit system tick timer.
type SysTick struct {
	CSR Register32 // control and status
	RVR Register32 // reload value
	CVR Register32 // current value
}

// FactoryCal holds factory-programmed calibration words from system memory.
type FactoryCal struct {
	TSCal30 Register32 // TS_CAL1: raw temperature sensor reading at 30 degC, 3.3 V (0x1FFFF7B8)
}

// Peripherals is the full register file of the simulated MCU. One instance
// per board; the firmware receives a pointer and never allocates past boot.
type Peripherals struct {
	RCC    RCC
	ADC    ADC
	GPIOA  GPIO
	USART2 USART
	TIM2   TIM
	SYST   SysTick
	Cal    FactoryCal
}

// NewPeripherals returns a register file in its power-on reset state.
func NewPeripherals() *Peripherals {
	p := &Peripherals{}
	// USART starts idle: transmit data register empty, transmission complete.
	p.USART2.ISR.Store(USART_ISR_TXE | USART_ISR_TC)
	return p
}

// SysTick CSR bits.
const (
	SYST_CSR_ENABLE    = 0x1 << 0
	SYST_CSR_TICKINT   = 0x1 << 1
	SYST_CSR_CLKSOURCE = 0x1 << 2
)

// RCC bits.
const (
	RCC_CR_HSION         = 0x1 << 0
	RCC_CR_HSIRDY        = 0x1 << 1
	RCC_CFGR_SW          = 0x3 << 0
	RCC_CFGR_SW_HSI      = 0x0 << 0
	RCC_CFGR_SWS         = 0x3 << 2
	RCC_CFGR_SWS_HSI     = 0x0 << 2
	RCC_AHBENR_IOPAEN    = 0x1 << 17
	RCC_APB2ENR_ADCEN    = 0x1 << 9
	RCC_APB1ENR_TIM2EN   = 0x1 << 0
	RCC_APB1ENR_USART2EN = 0x1 << 17
)

// ADC bits.
const (
	ADC_CR_ADEN        = 0x1 << 0
	ADC_CR_ADDIS       = 0x1 << 1
	ADC_CR_ADSTART     = 0x1 << 2
	ADC_CR_ADCAL       = 0x1 << 31
	ADC_CFGR1_CONT     = 0x1 << 13
	ADC_CCR_TSEN       = 0x1 << 23
	ADC_SMPR_SMP       = 0x7 << 0  // 111: 239.5 ADC clock cycles
	ADC_CHSELR_CHSEL16 = 0x1 << 16 // internal temperature sensor channel
)

// USART bits.
const (
	USART_CR1_UE    = 0x1 << 0
	USART_CR1_RE    = 0x1 << 2
	USART_CR1_TE    = 0x1 << 3
	USART_CR1_PCE   = 0x1 << 10
	USART_CR1_M0    = 0x1 << 12
	USART_CR1_OVER8 = 0x1 << 15
	USART_CR1_M1    = 0x1 << 28
	USART_CR2_STOP  = 0x3 << 12
	USART_ISR_RXNE  = 0x1 << 5
	USART_ISR_TC    = 0x1 << 6
	USART_ISR_TXE   = 0x1 << 7
)

// TIM bits.
const (
	TIM_CR1_CEN         = 0x1 << 0
	TIM_CCMR1_OC1PE     = 0x1 << 3
	TIM_CCMR1_OC1M      = 0x7 << 4
	TIM_CCMR1_OC1M_PWM1 = 0x6 << 4
	TIM_CCER_CC1E       = 0x1 << 0
)

// GPIOA pin fields. MODER holds 2 bits per pin, AFRL 4 bits per pin.
const (
	GPIO_MODER_ALTERNATE = 0x2

	GPIO_PA2_MODER_Pos = 4  // USART2 TX
	GPIO_PA3_MODER_Pos = 6  // USART2 RX
	GPIO_PA5_MODER_Pos = 10 // TIM2 CH1 (user LED)

	GPIO_PA2_AFRL_Pos = 8
	GPIO_PA3_AFRL_Pos = 12
	GPIO_PA5_AFRL_Pos = 20

	GPIO_AF1 = 0x1 // USART2
	GPIO_AF2 = 0x2 // TIM2
)
