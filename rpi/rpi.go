// SPDX-License-Identifier: MIT
//
// Copyright © 2017 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

// Package rpi provides an outdev.Backend for the Raspberry Pi (rev 2 and
// later) that drives the BCM2835/BCM2711 GPIO registers directly through
// /dev/gpiomem.
//
// Example of use:
//
// 	g, err := rpi.Open()
// 	if err != nil {
// 		panic(err)
// 	}
// 	defer g.Close()
//
// 	led := outdev.NewDigitalOutputDevice(g, rpi.GPIO4)
// 	defer led.Close()
//
// The backend uses the raw BCM2835 pin numbers, not the ports as they are
// mapped on the J8 header.  A mapping from J8 to BCM is provided for those
// wanting to use the J8 numbering.
//
// See the BCM2835 peripherals datasheet for full details of the controller:
// http://www.raspberrypi.org/wp-content/uploads/2012/02/BCM2835-ARM-Peripherals.pdf
package rpi

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/warthog618/outdev"
	"golang.org/x/sys/unix"
)

const (
	memLength = 4096

	modeMask uint32 = 7 // pin mode is 3 bits wide
)

// Mode defines the IO mode of a pin.
type Mode int

// Pin Mode, a pin can be set in Input or Output mode
const (
	Input Mode = iota
	Output
	Alt5
	Alt4
	Alt0
	Alt1
	Alt2
	Alt3
)

var (
	// ErrClosed indicates the GPIO memory has been unmapped.
	ErrClosed = errors.New("gpiomem closed")

	// ErrBusy indicates the pin has already been acquired.
	ErrBusy = errors.New("pin already acquired")

	// ErrInvalidPin indicates the pin number is not a GPIO on the J8 header.
	ErrInvalidPin = errors.New("invalid pin")
)

// GPIO is the memory mapped GPIO register block.
type GPIO struct {
	// The mu covers all access to mem, and the claimed pins, so a pin
	// cannot touch the registers once it is released or mem is unmapped.
	mu      sync.Mutex
	mem     []uint32
	mem8    []byte
	claimed map[int]*Pin
}

// Open memory maps the GPIO registers from /dev/gpiomem.
func Open() (*GPIO, error) {
	file, err := os.OpenFile("/dev/gpiomem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mem8, err := unix.Mmap(
		int(file.Fd()),
		0,
		memLength,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	g := newGPIO(unsafe.Slice((*uint32)(unsafe.Pointer(&mem8[0])), len(mem8)/4))
	g.mem8 = mem8
	return g, nil
}

func newGPIO(mem []uint32) *GPIO {
	return &GPIO{
		mem:     mem,
		claimed: make(map[int]*Pin),
	}
}

// Close reverts any acquired pins and unmaps the GPIO memory.
func (g *GPIO) Close() error {
	g.mu.Lock()
	pins := make([]*Pin, 0, len(g.claimed))
	for _, p := range g.claimed {
		pins = append(pins, p)
	}
	g.mu.Unlock()
	for _, p := range pins {
		p.Close()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mem == nil {
		return ErrClosed
	}
	g.mem = nil
	if g.mem8 == nil {
		return nil
	}
	mem8 := g.mem8
	g.mem8 = nil
	return unix.Munmap(mem8)
}

// Acquire claims a pin, identified by its BCM GPIO number.
//
// The mode of the pin is restored when the pin is closed.
func (g *GPIO) Acquire(pin int) (outdev.Line, error) {
	if pin < 0 || pin >= MaxGPIOPin {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPin, pin)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mem == nil {
		return nil, ErrClosed
	}
	if _, ok := g.claimed[pin]; ok {
		return nil, fmt.Errorf("%w: %d", ErrBusy, pin)
	}
	p := newPin(g, pin)
	p.restore = p.mode()
	g.claimed[pin] = p
	return p, nil
}

// Pin is a single GPIO pin acquired from the GPIO block.
type Pin struct {
	g *GPIO
	// Immutable fields
	pin      int
	fsel     int
	levelReg int
	clearReg int
	setReg   int
	mask     uint32
	// mode to restore on close.
	restore Mode
}

func newPin(g *GPIO, pin int) *Pin {
	// Pre-calculate commonly used register addresses and bit masks.

	// This seems like overkill given the J8 pins are all on the first bank...
	bank := pin / 32
	return &Pin{
		g:    g,
		pin:  pin,
		fsel: pin / 10, // Pin fsel register, 0 - 5 depending on pin
		mask: uint32(1 << uint(pin&0x1f)),
		// Input level register offset (13 / 14 depending on bank)
		levelReg: 13 + bank,
		// Clear register, 10 / 11 depending on bank
		clearReg: 10 + bank,
		// Set register, 7 / 8 depending on bank
		setReg: 7 + bank,
	}
}

// Output sets the pin as an output.
func (p *Pin) Output() error {
	return p.SetMode(Output)
}

// High sets the pin High.
//
// Has no effect once the pin is released.
func (p *Pin) High() {
	p.write(p.setReg)
}

// Low sets the pin Low.
//
// Has no effect once the pin is released.
func (p *Pin) Low() {
	p.write(p.clearReg)
}

func (p *Pin) write(reg int) {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if !p.claimed() {
		return
	}
	p.g.mem[reg] = p.mask
}

// Read returns the level of the pin.
//
// Returns Low once the pin is released.
func (p *Pin) Read() outdev.Level {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if !p.claimed() {
		return outdev.Low
	}
	return p.g.mem[p.levelReg]&p.mask != 0
}

// claimed returns true while the pin holds its claim on mapped memory.
// Must be called with g.mu held.
func (p *Pin) claimed() bool {
	return p.g.mem != nil && p.g.claimed[p.pin] == p
}

// Pin returns the BCM GPIO number of the pin.
func (p *Pin) Pin() int {
	return p.pin
}

// Mode returns the mode of the pin in the Function Select register.
func (p *Pin) Mode() Mode {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if p.g.mem == nil {
		return Input
	}
	return p.mode()
}

func (p *Pin) mode() Mode {
	modeShift := uint(p.pin%10) * 3
	return Mode(p.g.mem[p.fsel] >> modeShift & modeMask)
}

// SetMode sets the pin Mode.
func (p *Pin) SetMode(mode Mode) error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if !p.claimed() {
		return ErrClosed
	}
	p.setMode(mode)
	return nil
}

func (p *Pin) setMode(mode Mode) {
	// shift for pin mode field within fsel register.
	modeShift := uint(p.pin%10) * 3
	p.g.mem[p.fsel] = p.g.mem[p.fsel]&^(modeMask<<modeShift) | uint32(mode)<<modeShift
}

// Close restores the original mode of the pin and releases it.
func (p *Pin) Close() error {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	if p.g.claimed[p.pin] != p {
		return ErrClosed
	}
	delete(p.g.claimed, p.pin)
	if p.g.mem != nil {
		p.setMode(p.restore)
	}
	return nil
}
