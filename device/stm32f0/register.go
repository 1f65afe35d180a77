// Package stm32f0 models the STM32F070RB peripheral registers used by this
// firmware. On real hardware these are memory-mapped words; here each one is
// an atomic cell so the simulator can stand behind it while the firmware
// keeps the exact read-modify-write access patterns of the reference manual.
package stm32f0

import "sync/atomic"

// ReadHook is invoked on Get with the stored bits and returns the bits the
// reader observes. It may have side effects (e.g. popping a receive queue),
// which is exactly how memory-mapped data registers behave.
type ReadHook func(bits uint32) uint32

// WriteHook is invoked on Set with the old and requested bits and returns
// the bits actually stored. Peripherals use it to reject writes while their
// clock gate is off, or to latch transmit data.
type WriteHook func(old, bits uint32) uint32

// Register32 is a 32-bit peripheral register. The API mirrors TinyGo's
// runtime/volatile.Register32 so register sequences read the same as they
// would in on-device code.
type Register32 struct {
	bits    atomic.Uint32
	onRead  ReadHook
	onWrite WriteHook
}

// Get returns the register value.
func (r *Register32) Get() uint32 {
	v := r.bits.Load()
	if r.onRead != nil {
		return r.onRead(v)
	}
	return v
}

// Set stores a full register value.
func (r *Register32) Set(v uint32) {
	if r.onWrite != nil {
		v = r.onWrite(r.bits.Load(), v)
	}
	r.bits.Store(v)
}

// SetBits performs reg |= mask.
func (r *Register32) SetBits(mask uint32) {
	r.Set(r.bits.Load() | mask)
}

// ClearBits performs reg &^= mask.
func (r *Register32) ClearBits(mask uint32) {
	r.Set(r.bits.Load() &^ mask)
}

// HasBits reports whether all bits in mask are set.
func (r *Register32) HasBits(mask uint32) bool {
	return r.Get()&mask == mask
}

// ReplaceBits clears the field selected by mask<<pos and stores value<<pos.
func (r *Register32) ReplaceBits(value, mask uint32, pos uint8) {
	r.Set(r.bits.Load()&^(mask<<pos) | value<<pos)
}

// Hook attaches simulator behavior. Hooks see and return raw bits; storage
// stays a single atomic word so firmware-side readers never need a lock.
func (r *Register32) Hook(read ReadHook, write WriteHook) {
	r.onRead = read
	r.onWrite = write
}

// Raw returns the stored bits without invoking the read hook. The simulator
// uses this to inspect state it manages itself.
func (r *Register32) Raw() uint32 { return r.bits.Load() }

// Store sets the stored bits without invoking the write hook.
func (r *Register32) Store(v uint32) { r.bits.Store(v) }
