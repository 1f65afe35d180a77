// Package sim implements the hardware behavior behind the STM32F0 register
// file: oscillator startup, ADC calibration/conversion, TIM2 PWM preload,
// baud-timed USART transfer and the SysTick interrupt. Time is virtual and
// advances only when the firmware spins, so every busy-wait in the firmware
// terminates deterministically and tests can script exact timings.
package sim

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"stm32f0demo/device/stm32f0"
)

// Hardware latencies and periods, in microseconds of virtual time. The
// firmware treats these as documented constants with deterministic upper
// bounds; the exact values only need to be plausible.
const (
	hsiReadyLatencyUS   = 20
	adcCalLatencyUS     = 50
	adcEnableLatencyUS  = 10
	adcDisableLatencyUS = 10
	convPeriodUS        = 63 // 239.5+12.5 cycles at 4 MHz ADC clock

	defaultQuantumUS = 20
	defaultCal30     = 1750 // typical TS_CAL1 for an STM32F070 at 30 degC
)

type timedByte struct {
	at uint64 // virtual time the byte becomes available, µs
	b  byte
}

// Board is a simulated STM32F070 Nucleo. One goroutine (the firmware) reads
// and writes registers; an optional feeder goroutine queues receive bytes.
type Board struct {
	mu sync.Mutex
	p  *stm32f0.Peripherals

	nowUS     uint64
	quantumUS uint64

	realtime  bool
	sleepStep time.Duration
	lastWall  time.Time

	// pending hardware latencies, absolute µs deadlines (0 = idle)
	hsiReadyAt   uint64
	adcCalDoneAt uint64
	adcOnAt      uint64
	adcOffAt     uint64

	// conversion engine
	nextConvAt uint64

	// systick
	nextTickAt   uint64
	tickPeriodUS uint64
	onTick       func()

	// usart
	txBusy   bool
	txByte   byte
	txDoneAt uint64
	rx       []timedByte
	out      io.Writer
	outBuf   bytes.Buffer

	// tim2 shadow state
	ccrActive    uint32
	nextUpdateAt uint64

	// analog model
	dieTempC      float32
	driftC        float32
	driftPeriodUS uint64
}

// Option configures a Board.
type Option func(*Board)

// WithDieTemp sets the simulated die temperature in degrees Celsius.
func WithDieTemp(c float32) Option {
	return func(b *Board) { b.dieTempC = c }
}

// WithDrift adds a slow sinusoidal drift of the given amplitude and period
// to the die temperature.
func WithDrift(amplitudeC float32, period time.Duration) Option {
	return func(b *Board) {
		b.driftC = amplitudeC
		b.driftPeriodUS = uint64(period.Microseconds())
	}
}

// WithCal30 overrides the factory calibration word.
func WithCal30(raw uint16) Option {
	return func(b *Board) { b.p.Cal.TSCal30.Store(uint32(raw)) }
}

// WithQuantum sets how much virtual time elapses per firmware spin.
func WithQuantum(quantum time.Duration) Option {
	return func(b *Board) { b.quantumUS = uint64(quantum.Microseconds()) }
}

// WithRealtime slaves virtual time to the wall clock: each Step sleeps
// briefly and then advances by the elapsed wall time. Used for interactive
// runs; tests keep the default stepped mode.
func WithRealtime() Option {
	return func(b *Board) {
		b.realtime = true
		b.sleepStep = 200 * time.Microsecond
	}
}

// WithOutput directs completed UART transmissions to w instead of the
// internal capture buffer.
func WithOutput(w io.Writer) Option {
	return func(b *Board) { b.out = w }
}

// New builds a board in its power-on state and attaches the register hooks.
func New(opts ...Option) *Board {
	b := &Board{
		p:             stm32f0.NewPeripherals(),
		quantumUS:     defaultQuantumUS,
		dieTempC:      30,
		driftPeriodUS: 60_000_000,
		lastWall:      time.Now(),
	}
	b.p.Cal.TSCal30.Store(defaultCal30)
	for _, o := range opts {
		o(b)
	}
	b.attachHooks()
	return b
}

// Peripherals returns the register file the firmware runs against.
func (b *Board) Peripherals() *stm32f0.Peripherals { return b.p }

// OnSysTick registers the tick interrupt handler. Must be set before the
// firmware enables SysTick. The handler runs with the board locked and must
// not touch board registers; incrementing an atomic counter is the intended
// use.
func (b *Board) OnSysTick(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTick = fn
}

func (b *Board) attachHooks() {
	p := b.p

	p.RCC.CR.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		if bits&stm32f0.RCC_CR_HSION != 0 {
			if bits&stm32f0.RCC_CR_HSIRDY == 0 && b.hsiReadyAt == 0 {
				b.hsiReadyAt = b.nowUS + hsiReadyLatencyUS
			}
		} else {
			bits &^= stm32f0.RCC_CR_HSIRDY
			b.hsiReadyAt = 0
		}
		return bits
	})

	// The clock mux confirms the switch on the next bus cycle: SWS mirrors SW.
	p.RCC.CFGR.Hook(nil, func(old, bits uint32) uint32 {
		sw := bits & stm32f0.RCC_CFGR_SW
		return bits&^stm32f0.RCC_CFGR_SWS | sw<<2
	})

	p.ADC.CR.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		if p.RCC.APB2ENR.Raw()&stm32f0.RCC_APB2ENR_ADCEN == 0 {
			return old // peripheral clock off: writes have no effect
		}
		rising := bits &^ old
		if rising&stm32f0.ADC_CR_ADCAL != 0 {
			b.adcCalDoneAt = b.nowUS + adcCalLatencyUS
		}
		if rising&stm32f0.ADC_CR_ADDIS != 0 {
			b.adcOffAt = b.nowUS + adcDisableLatencyUS
		}
		if rising&stm32f0.ADC_CR_ADEN != 0 {
			// enable is not instantaneous: the bit reads back set once the
			// converter voltage regulator settles
			bits &^= stm32f0.ADC_CR_ADEN
			b.adcOnAt = b.nowUS + adcEnableLatencyUS
		}
		if rising&stm32f0.ADC_CR_ADSTART != 0 && old&stm32f0.ADC_CR_ADEN != 0 {
			b.nextConvAt = b.nowUS + convPeriodUS
		}
		return bits
	})

	p.USART2.CR1.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		p.USART2.CR1.Store(bits) // refresh sees the new enable bits
		b.refreshRXNE()
		return bits
	})

	p.USART2.TDR.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		cr1 := p.USART2.CR1.Raw()
		if cr1&stm32f0.USART_CR1_UE == 0 || cr1&stm32f0.USART_CR1_TE == 0 {
			return old // transmitter disabled: byte is lost
		}
		b.txBusy = true
		b.txByte = byte(bits)
		b.txDoneAt = b.nowUS + b.byteTimeUS()
		p.USART2.ISR.Store(p.USART2.ISR.Raw() &^ (stm32f0.USART_ISR_TXE | stm32f0.USART_ISR_TC))
		return bits
	})

	p.USART2.RDR.Hook(func(bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		if len(b.rx) == 0 || b.rx[0].at > b.nowUS {
			return 0
		}
		v := uint32(b.rx[0].b)
		b.rx = b.rx[1:]
		b.refreshRXNE()
		return v
	}, nil)

	p.TIM2.CR1.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		if bits&stm32f0.TIM_CR1_CEN != 0 && old&stm32f0.TIM_CR1_CEN == 0 {
			b.nextUpdateAt = b.nowUS + b.pwmPeriodUS()
			// first period starts from the current preload value
			b.ccrActive = p.TIM2.CCR1.Raw()
		}
		if bits&stm32f0.TIM_CR1_CEN == 0 {
			b.nextUpdateAt = 0
		}
		return bits
	})

	p.TIM2.CCR1.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		// without preload the compare value takes effect immediately
		if p.TIM2.CCMR1.Raw()&stm32f0.TIM_CCMR1_OC1PE == 0 {
			b.ccrActive = bits
		}
		return bits
	})

	p.SYST.CSR.Hook(nil, func(old, bits uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		const run = stm32f0.SYST_CSR_ENABLE | stm32f0.SYST_CSR_TICKINT
		if bits&run == run {
			b.tickPeriodUS = uint64(p.SYST.RVR.Raw()+1) / 8 // 8 cycles per µs
			if b.tickPeriodUS == 0 {
				b.tickPeriodUS = 1
			}
			if b.nextTickAt == 0 {
				b.nextTickAt = b.nowUS + b.tickPeriodUS
			}
		} else {
			b.nextTickAt = 0
		}
		return bits
	})
}

// Step advances virtual time by one quantum (or by the elapsed wall time in
// realtime mode), firing every due hardware event in chronological order.
// It is the firmware's Spin hook.
func (b *Board) Step() {
	if b.realtime {
		time.Sleep(b.sleepStep)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	dt := b.quantumUS
	if b.realtime {
		now := time.Now()
		dt = uint64(now.Sub(b.lastWall).Microseconds())
		b.lastWall = now
		if dt == 0 {
			dt = 1
		}
	}
	b.advance(b.nowUS + dt)
}

// advance moves virtual time to target, resolving events at their own
// timestamps so ordering between e.g. a SysTick and a transmit completion is
// preserved.
func (b *Board) advance(target uint64) {
	for {
		at, fire := b.nextEvent(target)
		if !fire {
			break
		}
		b.nowUS = at
		b.fireDue()
	}
	b.nowUS = target
	b.refreshRXNE()
}

func (b *Board) nextEvent(target uint64) (uint64, bool) {
	at := uint64(0)
	consider := func(t uint64) {
		if t != 0 && t <= target && (at == 0 || t < at) {
			at = t
		}
	}
	consider(b.nextTickAt)
	consider(b.hsiReadyAt)
	consider(b.adcCalDoneAt)
	consider(b.adcOnAt)
	consider(b.adcOffAt)
	consider(b.nextConvAt)
	consider(b.nextUpdateAt)
	if b.txBusy {
		consider(b.txDoneAt)
	}
	return at, at != 0
}

func (b *Board) fireDue() {
	p := b.p

	if b.nextTickAt != 0 && b.nextTickAt <= b.nowUS {
		b.nextTickAt += b.tickPeriodUS
		if b.onTick != nil {
			b.onTick()
		}
	}
	if b.hsiReadyAt != 0 && b.hsiReadyAt <= b.nowUS {
		b.hsiReadyAt = 0
		p.RCC.CR.Store(p.RCC.CR.Raw() | stm32f0.RCC_CR_HSIRDY)
	}
	if b.adcCalDoneAt != 0 && b.adcCalDoneAt <= b.nowUS {
		b.adcCalDoneAt = 0
		p.ADC.CR.Store(p.ADC.CR.Raw() &^ stm32f0.ADC_CR_ADCAL)
	}
	if b.adcOnAt != 0 && b.adcOnAt <= b.nowUS {
		b.adcOnAt = 0
		p.ADC.CR.Store(p.ADC.CR.Raw() | stm32f0.ADC_CR_ADEN)
	}
	if b.adcOffAt != 0 && b.adcOffAt <= b.nowUS {
		b.adcOffAt = 0
		p.ADC.CR.Store(p.ADC.CR.Raw() &^ (stm32f0.ADC_CR_ADEN | stm32f0.ADC_CR_ADDIS | stm32f0.ADC_CR_ADSTART))
		b.nextConvAt = 0
	}
	if b.nextConvAt != 0 && b.nextConvAt <= b.nowUS {
		cont := p.ADC.CFGR1.Raw()&stm32f0.ADC_CFGR1_CONT != 0
		p.ADC.DR.Store(uint32(b.sampleRaw()))
		if cont {
			b.nextConvAt += convPeriodUS
		} else {
			b.nextConvAt = 0
			p.ADC.CR.Store(p.ADC.CR.Raw() &^ stm32f0.ADC_CR_ADSTART)
		}
	}
	if b.nextUpdateAt != 0 && b.nextUpdateAt <= b.nowUS {
		b.nextUpdateAt += b.pwmPeriodUS()
		// update event: preload register transfers to the active compare
		b.ccrActive = p.TIM2.CCR1.Raw()
	}
	if b.txBusy && b.txDoneAt <= b.nowUS {
		b.txBusy = false
		w := b.out
		if w == nil {
			w = &b.outBuf
		}
		w.Write([]byte{b.txByte})
		p.USART2.ISR.Store(p.USART2.ISR.Raw() | stm32f0.USART_ISR_TXE | stm32f0.USART_ISR_TC)
	}
}

// refreshRXNE mirrors receive-queue readiness into the status register.
// Reception requires the receiver and the peripheral to be enabled.
func (b *Board) refreshRXNE() {
	cr1 := b.p.USART2.CR1.Raw()
	on := cr1&stm32f0.USART_CR1_UE != 0 && cr1&stm32f0.USART_CR1_RE != 0
	isr := b.p.USART2.ISR.Raw()
	if on && len(b.rx) > 0 && b.rx[0].at <= b.nowUS {
		b.p.USART2.ISR.Store(isr | stm32f0.USART_ISR_RXNE)
	} else {
		b.p.USART2.ISR.Store(isr &^ stm32f0.USART_ISR_RXNE)
	}
}

// byteTimeUS is the wire time of one 10-bit frame (start + 8 data + stop) at
// the configured divisor.
func (b *Board) byteTimeUS() uint64 {
	brr := uint64(b.p.USART2.BRR.Raw())
	if brr == 0 {
		return 1042 // 9600 baud fallback
	}
	return brr * 10 / 8 // brr/8 µs per bit at 8 MHz
}

func (b *Board) pwmPeriodUS() uint64 {
	psc := uint64(b.p.TIM2.PSC.Raw()) + 1
	arr := uint64(b.p.TIM2.ARR.Raw()) + 1
	period := psc * arr / 8 // counter clocked at 8 MHz
	if period == 0 {
		period = 1
	}
	return period
}

// sampleRaw runs the analog model: the die temperature (with optional
// drift) mapped through the inverse of the firmware's calibration formula,
// clamped to the 12-bit conversion range.
func (b *Board) sampleRaw() uint16 {
	t := b.dieTempC
	if b.driftC != 0 && b.driftPeriodUS != 0 {
		phase := float32(b.nowUS%b.driftPeriodUS) / float32(b.driftPeriodUS)
		t += b.driftC * math32.Sin(2*math32.Pi*phase)
	}
	raw := float32(b.p.Cal.TSCal30.Raw()) + (t-30)*float32(AvgSlopeCounts)
	if raw < 0 {
		return 0
	}
	if raw > 4095 {
		return 4095
	}
	return uint16(raw)
}

// AvgSlopeCounts is the sensor slope in ADC counts per degree Celsius, the
// inverse of the 5336 uV/degC figure the firmware divides by.
const AvgSlopeCounts = 5336.0 / 1000.0

// QueueInput schedules bytes on the receive line starting after delay of
// virtual time, spaced one frame apart as a real transmitter would send
// them.
func (b *Board) QueueInput(delay time.Duration, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at := b.nowUS + uint64(delay.Microseconds())
	for i := 0; i < len(data); i++ {
		b.rx = append(b.rx, timedByte{at: at, b: data[i]})
		at += b.byteTimeUS()
	}
	b.refreshRXNE()
}

// Feed makes bytes available immediately. Safe to call from a goroutine
// bridging a real input stream.
func (b *Board) Feed(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range data {
		b.rx = append(b.rx, timedByte{at: b.nowUS, b: c})
	}
	b.refreshRXNE()
}

// SetDieTemp changes the simulated die temperature.
func (b *Board) SetDieTemp(c float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dieTempC = c
}

// Now returns the elapsed virtual time.
func (b *Board) Now() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.nowUS) * time.Microsecond
}

// Output returns everything transmitted so far when no external writer is
// bound.
func (b *Board) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outBuf.String()
}

// ResetOutput clears the capture buffer.
func (b *Board) ResetOutput() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outBuf.Reset()
}

// ActiveDuty returns the compare value currently shaping the waveform, i.e.
// after preload transfer, not the preload register itself.
func (b *Board) ActiveDuty() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ccrActive
}

// PWMFrequencyHz returns the waveform frequency derived from the prescaler
// and period the firmware programmed.
func (b *Board) PWMFrequencyHz() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	psc := float64(b.p.TIM2.PSC.Raw()) + 1
	arr := float64(b.p.TIM2.ARR.Raw()) + 1
	return 8e6 / (psc * arr)
}
