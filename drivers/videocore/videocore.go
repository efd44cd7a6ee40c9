// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package videocore exposes the BCM2711 VideoCore property-tag calls this
// kernel needs at boot (the tag IDs are unchanged across the BCM283x
// family).
package videocore

import (
	"encoding/binary"
	"fmt"

	"github.com/kestrel-os/kestrel/drivers/mailbox"
)

const channelPropertyTagsArmToVc = 8

// responseOK is the message code the firmware writes back when every tag
// in the request was processed.
const responseOK = 0x80000000

const (
	tagGetFirmwareRevision = 0x00000001
	tagGetBoardModel       = 0x00010001
	tagGetBoardSerial      = 0x00010004
	tagGetArmMemory        = 0x00010005
	tagGetVCMemory         = 0x00010006
)

// VideoCore wraps a Mailbox with the ARM<->VideoCore property-tag protocol.
type VideoCore struct {
	mbox *mailbox.Mailbox
}

// New wraps mbox as a VideoCore property-tag client.
func New(mbox *mailbox.Mailbox) *VideoCore {
	return &VideoCore{mbox: mbox}
}

func (v *VideoCore) callSingleTag(id uint32, respSize int) ([]byte, error) {
	msg := &mailbox.Message{
		Tags: []mailbox.Tag{{ID: id, Buffer: make([]byte, respSize)}},
	}

	if err := v.mbox.Call(channelPropertyTagsArmToVc, msg); err != nil {
		return nil, err
	}

	if msg.Code != responseOK {
		return nil, fmt.Errorf("videocore: tag %#x not answered, response code %#x", id, msg.Code)
	}
	if len(msg.Tags) == 0 || len(msg.Tags[0].Buffer) < respSize {
		return nil, fmt.Errorf("videocore: short response for tag %#x", id)
	}

	return msg.Tags[0].Buffer, nil
}

// FirmwareRevision returns the VideoCore firmware revision.
func (v *VideoCore) FirmwareRevision() (uint32, error) {
	buf, err := v.callSingleTag(tagGetFirmwareRevision, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// BoardModel returns the board's model identifier.
func (v *VideoCore) BoardModel() (uint32, error) {
	buf, err := v.callSingleTag(tagGetBoardModel, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// BoardSerial returns the board's 64-bit serial number.
func (v *VideoCore) BoardSerial() (uint64, error) {
	buf, err := v.callSingleTag(tagGetBoardSerial, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ARMMemory returns the (base, size) of memory reserved for the ARM cores.
func (v *VideoCore) ARMMemory() (base, size uint32, err error) {
	buf, err := v.callSingleTag(tagGetArmMemory, 8)
	if err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(buf[0:]), binary.LittleEndian.Uint32(buf[4:]), nil
}

// VCMemory returns the (base, size) of memory reserved for the VideoCore GPU.
func (v *VideoCore) VCMemory() (base, size uint32, err error) {
	buf, err := v.callSingleTag(tagGetVCMemory, 8)
	if err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(buf[0:]), binary.LittleEndian.Uint32(buf[4:]), nil
}
