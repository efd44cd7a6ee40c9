// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mailbox implements the BCM2711 VideoCore mailbox property-tag
// protocol (the wire format is unchanged across the BCM283x/BCM2711
// family).
package mailbox

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/kestrel-os/kestrel/drivers/dma"
	"github.com/kestrel-os/kestrel/internal/reg"
)

// Register offsets relative to the mailbox peripheral base, plus the bit
// positions of the status flags.
const (
	readReg   = 0x00
	statusReg = 0x18
	writeReg  = 0x20

	statusFullBit  = 31
	statusEmptyBit = 30
)

// Tag is one property-tag request/response pair.
type Tag struct {
	ID     uint32
	Buffer []byte
}

// Message is a full mailbox exchange: a sequence of tags sent together and
// overwritten in place with the VideoCore's response.
type Message struct {
	Code uint32
	Tags []Tag
}

// Mailbox drives one VideoCore mailbox channel.
type Mailbox struct {
	mu     sync.Mutex
	base   uintptr
	region *dma.Region
}

// New creates a Mailbox whose registers start at base, using scratch
// sourced from the given DMA region.
func New(base uintptr, region *dma.Region) *Mailbox {
	return &Mailbox{base: base, region: region}
}

// Call exchanges message on the given channel, replacing its tags with the
// VideoCore's reply in place.
func (m *Mailbox) Call(channel int, msg *Message) error {
	size := 8
	for _, t := range msg.Tags {
		size += 12 + int((uint32(len(t.Buffer))+3)&^3)
	}
	size += 4

	addr, buf := m.region.Reserve(size, 16)
	defer m.region.Release(addr)

	binary.LittleEndian.PutUint32(buf[0:], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:], 0)

	off := 8
	for _, t := range msg.Tags {
		binary.LittleEndian.PutUint32(buf[off:], t.ID)
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(len(t.Buffer)))
		binary.LittleEndian.PutUint32(buf[off+8:], 0)
		copy(buf[off+12:], t.Buffer)
		off += 12 + int((uint32(len(t.Buffer))+3)&^3)
	}
	binary.LittleEndian.PutUint32(buf[off:], 0)

	if err := m.exchange(channel, addr); err != nil {
		return err
	}

	msg.Code = binary.LittleEndian.Uint32(buf[4:])
	msg.Tags = msg.Tags[:0]

	off = 8
	for off < len(buf) {
		id := binary.LittleEndian.Uint32(buf[off:])
		if id == 0 {
			break
		}
		length := binary.LittleEndian.Uint32(buf[off+4:])
		if int(length) > size-off {
			return fmt.Errorf("mailbox: malformed response, oversized tag")
		}

		value := make([]byte, length)
		copy(value, buf[off+12:])
		msg.Tags = append(msg.Tags, Tag{ID: id, Buffer: value})

		off += 12 + int((length+3)&^3)
	}

	return nil
}

func (m *Mailbox) exchange(channel int, addr uintptr) error {
	if addr&0xf != 0 {
		return fmt.Errorf("mailbox: message buffer must be 16-byte aligned")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for reg.Get64(m.base+statusReg, statusFullBit) {
		// wait for room to send
	}

	packed := uint32(channel&0xf) | uint32(addr&0xfffffff0)
	reg.Write64(m.base+writeReg, uint64(packed))

	for reg.Get64(m.base+statusReg, statusEmptyBit) {
		// wait for a response
	}

	data := uint32(reg.Read64(m.base + readReg))

	if data&0xf != uint32(channel&0xf) {
		return fmt.Errorf("mailbox: response for channel %d, expected %d", data&0xf, channel&0xf)
	}
	if data&0xfffffff0 != uint32(addr&0xfffffff0) {
		return fmt.Errorf("mailbox: response address %#x, expected %#x", data&0xfffffff0, addr&0xfffffff0)
	}

	return nil
}
