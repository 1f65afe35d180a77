// Package core is the firmware proper: the peripheral bring-up sequences and
// the serial command interpreter of the STM32F0xx demo. It runs as a single
// sequential thread of control; the only preemption is the millisecond tick,
// whose handler does nothing but increment a counter.
package core

// Spin is invoked between polls of a hardware status flag. A simulated board
// advances its virtual time here; on real hardware the flag flips on its own
// and the hook is nil.
type Spin func()

// Until busy-waits until pred holds. This is the unbounded wait used for
// documented-constant hardware latencies (oscillator ready, calibration
// done, transmit complete). If the hardware never reports ready the wait
// never returns; recovery is external reset.
func (s Spin) Until(pred func() bool) {
	for !pred() {
		if s != nil {
			s()
		}
	}
}
