package core

import "stm32f0demo/device/stm32f0"

// BaudRate of the serial link. BRR = 8 MHz / 9600 = 0x341 with 16x
// oversampling.
const (
	BaudRate = 9600
	brrValue = 0x341
)

// UART is the byte-oriented serial link on USART2 (PA2 TX, PA3 RX). There
// is no buffering beyond the single-byte hardware holding registers; the
// command interpreter is the only buffer.
type UART struct {
	u     *stm32f0.USART
	rcc   *stm32f0.RCC
	gpioa *stm32f0.GPIO
	spin  Spin
}

// NewUART binds the serial link to its register blocks.
func NewUART(u *stm32f0.USART, rcc *stm32f0.RCC, gpioa *stm32f0.GPIO, spin Spin) *UART {
	return &UART{u: u, rcc: rcc, gpioa: gpioa, spin: spin}
}

// Configure sets up 9600 baud 8N1. The peripheral is disabled first so the
// frame format lands in a known state, then transmitter, receiver and the
// peripheral are enabled in that order.
func (u *UART) Configure() {
	u.rcc.AHBENR.SetBits(stm32f0.RCC_AHBENR_IOPAEN)

	u.gpioa.MODER.ReplaceBits(stm32f0.GPIO_MODER_ALTERNATE, 0x3, stm32f0.GPIO_PA2_MODER_Pos)
	u.gpioa.AFRL.ReplaceBits(stm32f0.GPIO_AF1, 0xF, stm32f0.GPIO_PA2_AFRL_Pos)
	u.gpioa.MODER.ReplaceBits(stm32f0.GPIO_MODER_ALTERNATE, 0x3, stm32f0.GPIO_PA3_MODER_Pos)
	u.gpioa.AFRL.ReplaceBits(stm32f0.GPIO_AF1, 0xF, stm32f0.GPIO_PA3_AFRL_Pos)

	u.rcc.APB1ENR.SetBits(stm32f0.RCC_APB1ENR_USART2EN)

	u.u.CR1.ClearBits(stm32f0.USART_CR1_UE)

	u.u.CR1.ClearBits(stm32f0.USART_CR1_OVER8) // 16x oversampling
	u.u.CR1.ClearBits(stm32f0.USART_CR1_M0)    // 8 data bits
	u.u.CR1.ClearBits(stm32f0.USART_CR1_M1)
	u.u.CR1.ClearBits(stm32f0.USART_CR1_PCE)  // no parity
	u.u.CR2.ClearBits(stm32f0.USART_CR2_STOP) // 1 stop bit

	u.u.BRR.Set(brrValue)

	u.u.CR1.SetBits(stm32f0.USART_CR1_TE)
	u.u.CR1.SetBits(stm32f0.USART_CR1_RE)
	u.u.CR1.SetBits(stm32f0.USART_CR1_UE)
}

// SendByte writes one byte and busy-waits until the transmit data register
// drains. Fully blocking.
func (u *UART) SendByte(b byte) {
	u.u.TDR.Set(uint32(b))
	u.spin.Until(func() bool {
		return u.u.ISR.HasBits(stm32f0.USART_ISR_TXE)
	})
}

// SendString transmits text byte by byte, blocking on each one.
func (u *UART) SendString(text string) {
	for i := 0; i < len(text); i++ {
		u.SendByte(text[i])
	}
}

// ByteAvailable reports whether the receive data register holds a byte.
func (u *UART) ByteAvailable() bool {
	return u.u.ISR.HasBits(stm32f0.USART_ISR_RXNE)
}

// ReceiveByte returns the received byte, or 0 when nothing is available.
// The zero sentinel is indistinguishable from a genuine NUL; callers check
// ByteAvailable first. Kept for wire compatibility with the original design.
func (u *UART) ReceiveByte() byte {
	if u.ByteAvailable() {
		return byte(u.u.RDR.Get())
	}
	return 0
}
