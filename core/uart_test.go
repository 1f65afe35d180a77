package core_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm32f0demo/core"
	"stm32f0demo/device/stm32f0"
	"stm32f0demo/sim"
)

func newUART(t *testing.T) (*core.UART, *sim.Board, *stm32f0.Peripherals) {
	t.Helper()
	board := sim.New()
	p := board.Peripherals()
	u := core.NewUART(&p.USART2, &p.RCC, &p.GPIOA, board.Step)
	u.Configure()
	return u, board, p
}

func TestConfigureSets9600Baud8N1(t *testing.T) {
	_, _, p := newUART(t)

	assert.Equal(t, uint32(0x341), p.USART2.BRR.Get())
	cr1 := p.USART2.CR1.Get()
	assert.Zero(t, cr1&stm32f0.USART_CR1_M0, "8 data bits")
	assert.Zero(t, cr1&stm32f0.USART_CR1_M1, "8 data bits")
	assert.Zero(t, cr1&stm32f0.USART_CR1_PCE, "no parity")
	assert.Zero(t, p.USART2.CR2.Get()&stm32f0.USART_CR2_STOP, "1 stop bit")
	assert.True(t, p.USART2.CR1.HasBits(stm32f0.USART_CR1_UE|stm32f0.USART_CR1_TE|stm32f0.USART_CR1_RE))
}

func TestSendStringBlocksPerByteUntilTransmitted(t *testing.T) {
	u, board, _ := newUART(t)

	start := board.Now()
	u.SendString("hello")
	// five 10-bit frames at 9600 baud is a hair over 5 ms of wire time
	assert.GreaterOrEqual(t, board.Now()-start, 5*time.Millisecond)
	assert.Equal(t, "hello", board.Output())
}

func TestReceiveByteReturnsSentinelWhenIdle(t *testing.T) {
	u, _, _ := newUART(t)

	assert.False(t, u.ByteAvailable())
	// indistinguishable from a genuine NUL by design
	assert.Equal(t, byte(0), u.ReceiveByte())
}

func TestReceiveByteReturnsQueuedBytesInOrder(t *testing.T) {
	u, board, _ := newUART(t)

	board.QueueInput(0, "ab")
	require.True(t, u.ByteAvailable())
	assert.Equal(t, byte('a'), u.ReceiveByte())

	// the second byte is still on the wire for one frame time
	assert.False(t, u.ByteAvailable())
	advance(board, 2*time.Millisecond)
	require.True(t, u.ByteAvailable())
	assert.Equal(t, byte('b'), u.ReceiveByte())
	assert.False(t, u.ByteAvailable())
}

func TestNoBytesAvailableBeforeReceiverEnabled(t *testing.T) {
	board := sim.New()
	p := board.Peripherals()
	u := core.NewUART(&p.USART2, &p.RCC, &p.GPIOA, board.Step)

	board.QueueInput(0, "x")
	assert.False(t, u.ByteAvailable())

	u.Configure()
	assert.True(t, u.ByteAvailable())
	assert.Equal(t, byte('x'), u.ReceiveByte())
}

func TestConfigureIsIdempotent(t *testing.T) {
	u, board, p := newUART(t)

	u.Configure()
	assert.Equal(t, uint32(0x341), p.USART2.BRR.Get())

	u.SendString("ok")
	assert.True(t, strings.HasSuffix(board.Output(), "ok"))
}
