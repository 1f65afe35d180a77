package core

import (
	"strconv"

	"stm32f0demo/device/stm32f0"
)

// digitTimeoutMS bounds how long the interpreter waits for brightness digits
// after an L command.
const digitTimeoutMS = 5000

// App wires the peripherals together and runs the command interpreter. The
// only session state that survives a loop iteration is the temperature
// reporting flag.
type App struct {
	Clock *Clock
	Tb    *SysTick
	Temp  *TempSensor
	Led   *LED
	Uart  *UART

	spin Spin

	reporting bool
}

// NewApp builds the firmware against a register file. spin is the busy-wait
// hook shared by every component.
func NewApp(p *stm32f0.Peripherals, spin Spin) *App {
	tb := NewSysTick(&p.SYST, spin)
	return &App{
		Clock: NewClock(&p.RCC, spin),
		Tb:    tb,
		Temp:  NewTempSensor(&p.ADC, &p.RCC, &p.Cal, tb, spin),
		Led:   NewLED(&p.TIM2, &p.RCC, &p.GPIOA),
		Uart:  NewUART(&p.USART2, &p.RCC, &p.GPIOA, spin),
		spin:  spin,
	}
}

// Setup performs the one-time startup sequence: clock, timebase, ADC
// pipeline, PWM, serial link, in that order, then drains residual receive
// bytes, settles and prints the banner.
func (a *App) Setup() {
	a.Clock.Configure()
	a.Tb.Init()
	a.Temp.Configure()
	a.Led.Configure()
	a.Uart.Configure()

	for a.Uart.ByteAvailable() {
		a.Uart.ReceiveByte()
	}
	a.Tb.Delay(50)

	a.Uart.SendString("STM32F0xx Demo\r\n")
	a.Uart.SendString("T - to toggle temperature reading\r\n")
	a.Uart.SendString("L<0-99> - to set LED brightness\r\n")
}

// Run executes the interpreter loop forever. Termination is external reset
// only.
func (a *App) Run() {
	for {
		a.Step()
	}
}

// Step runs one iteration of the main loop: dispatch at most one pending
// command byte, then emit a temperature line if reporting is on. The 1000 ms
// delay after a report is deliberate and also delays command handling while
// reporting is active.
func (a *App) Step() {
	if a.Uart.ByteAvailable() {
		switch c := a.Uart.ReceiveByte(); c {
		case 'T', 't':
			a.toggleReporting()
		case 'L', 'l':
			a.collectBrightness()
		default:
			// unrecognized bytes are silently ignored
		}
	}

	if a.reporting {
		a.Uart.SendString("Temp: " + strconv.Itoa(int(a.Temp.ReadTemperature())) + " degC\r\n")
		a.Tb.Delay(1000)
	} else if a.spin != nil {
		a.spin()
	}
}

func (a *App) toggleReporting() {
	a.reporting = !a.reporting
	if a.reporting {
		a.Uart.SendString("Temperature reading ON\r\n")
	} else {
		a.Uart.SendString("Temperature reading OFF\r\n")
	}
}

// collectBrightness gathers up to two ASCII digits, echoing each received
// byte. Collection ends at two digits, the first non-digit byte, or after
// 5000 ms, whichever comes first. The elapsed-time check uses unsigned
// subtraction so it survives a counter wraparound mid-wait.
func (a *App) collectBrightness() {
	a.Uart.SendString("LED command received, waiting for digits...\r\n")

	var digits [2]byte
	idx := 0
	start := a.Tb.Now()
	for idx < 2 && a.Tb.Now()-start < digitTimeoutMS {
		if !a.Uart.ByteAvailable() {
			if a.spin != nil {
				a.spin()
			}
			continue
		}
		c := a.Uart.ReceiveByte()
		a.Uart.SendByte(c) // echo

		if c < '0' || c > '9' {
			break
		}
		digits[idx] = c
		idx++
		a.Tb.Delay(5)
	}

	if idx == 0 {
		a.Uart.SendString("No digits received after L command\r\n")
		return
	}

	brightness := uint32(0)
	for i := 0; i < idx; i++ {
		brightness = brightness*10 + uint32(digits[i]-'0')
	}
	a.Led.SetBrightness(brightness)
	a.Uart.SendString("\r\nLED brightness set to " + strconv.Itoa(int(brightness)) + "%\r\n")
}
