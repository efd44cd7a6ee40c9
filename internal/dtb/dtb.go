// Kestrel kernel for ARMv8-A
// https://github.com/kestrel-os/kestrel
//
// Copyright (c) The Kestrel OS Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dtb parses a Flattened Device Tree blob, enough to discover the
// kernel's memory range and the compatible strings of the peripherals it
// cares about.
package dtb

import (
	"encoding/binary"
	"fmt"
)

const (
	magic = 0xd00dfeed

	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenNop       = 0x4
	tokenEnd       = 0x9
)

type header struct {
	Magic              uint32
	TotalSize          uint32
	OffDtStruct        uint32
	OffDtStrings       uint32
	OffMemRsvmap       uint32
	Version            uint32
	LastCompVersion    uint32
	BootCpuidPhys      uint32
	SizeDtStrings      uint32
	SizeDtStruct       uint32
}

// Property is a name/value pair attached to a Node.
type Property struct {
	Name  string
	Value []byte
}

// Node is one node of the parsed device tree, including its children.
type Node struct {
	Name       string
	Properties []Property
	Children   []*Node

	addressCells uint32
	sizeCells    uint32
}

// Property returns the named property, or nil if absent.
func (n *Node) Property(name string) *Property {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return &n.Properties[i]
		}
	}
	return nil
}

// Compatible reports whether the node's "compatible" property contains the
// given string among its NUL-separated entries.
func (n *Node) Compatible(want string) bool {
	p := n.Property("compatible")
	if p == nil {
		return false
	}

	for _, s := range splitStrings(p.Value) {
		if s == want {
			return true
		}
	}
	return false
}

func splitStrings(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			if i > start {
				out = append(out, string(b[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

// Reg is one (address, size) pair decoded from a "reg" property using the
// node's inherited #address-cells/#size-cells.
type Reg struct {
	Address uint64
	Size    uint64
}

// Regs decodes the node's "reg" property using addressCells/sizeCells
// inherited from its parent during parsing.
func (n *Node) Regs() []Reg {
	p := n.Property("reg")
	if p == nil {
		return nil
	}

	entrySize := int(n.addressCells+n.sizeCells) * 4
	if entrySize == 0 {
		return nil
	}

	var out []Reg
	for off := 0; off+entrySize <= len(p.Value); off += entrySize {
		out = append(out, Reg{
			Address: readCells(p.Value[off:], n.addressCells),
			Size:    readCells(p.Value[off+int(n.addressCells)*4:], n.sizeCells),
		})
	}
	return out
}

func readCells(b []byte, cells uint32) uint64 {
	switch cells {
	case 1:
		return uint64(binary.BigEndian.Uint32(b))
	case 2:
		return binary.BigEndian.Uint64(b)
	default:
		return 0
	}
}

// Walk calls fn for this node and every descendant, depth first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// FindCompatible returns every node in the tree whose "compatible" property
// contains want.
func (n *Node) FindCompatible(want string) []*Node {
	var out []*Node
	n.Walk(func(c *Node) {
		if c.Compatible(want) {
			out = append(out, c)
		}
	})
	return out
}

// Tree is a parsed Flattened Device Tree.
type Tree struct {
	Root *Node
}

// Parse decodes a raw FDT blob starting at its 40-byte header.
func Parse(blob []byte) (*Tree, error) {
	if len(blob) < 40 {
		return nil, fmt.Errorf("dtb: blob too short for header (%d bytes)", len(blob))
	}

	h := header{
		Magic:           binary.BigEndian.Uint32(blob[0:4]),
		TotalSize:       binary.BigEndian.Uint32(blob[4:8]),
		OffDtStruct:     binary.BigEndian.Uint32(blob[8:12]),
		OffDtStrings:    binary.BigEndian.Uint32(blob[12:16]),
		OffMemRsvmap:    binary.BigEndian.Uint32(blob[16:20]),
		Version:         binary.BigEndian.Uint32(blob[20:24]),
		LastCompVersion: binary.BigEndian.Uint32(blob[24:28]),
		BootCpuidPhys:   binary.BigEndian.Uint32(blob[28:32]),
		SizeDtStrings:   binary.BigEndian.Uint32(blob[32:36]),
		SizeDtStruct:    binary.BigEndian.Uint32(blob[36:40]),
	}

	if h.Magic != magic {
		panic(fmt.Sprintf("dtb: bad magic %#x", h.Magic))
	}

	if int(h.OffDtStruct+h.SizeDtStruct) > len(blob) || int(h.OffDtStrings+h.SizeDtStrings) > len(blob) {
		return nil, fmt.Errorf("dtb: struct/strings block out of bounds")
	}

	strs := blob[h.OffDtStrings : h.OffDtStrings+h.SizeDtStrings]
	structBlock := blob[h.OffDtStruct : h.OffDtStruct+h.SizeDtStruct]

	p := &parser{struct_: structBlock, strings: strs}
	root, err := p.parseNode(2, 1)
	if err != nil {
		return nil, err
	}

	return &Tree{Root: root}, nil
}

type parser struct {
	struct_ []byte
	strings []byte
	off     int
}

func (p *parser) readU32() uint32 {
	v := binary.BigEndian.Uint32(p.struct_[p.off:])
	p.off += 4
	return v
}

func align4(n int) int {
	return (n + 3) &^ 3
}

func (p *parser) readCString() string {
	start := p.off
	for p.struct_[p.off] != 0 {
		p.off++
	}
	s := string(p.struct_[start:p.off])
	p.off = align4(p.off + 1)
	return s
}

func (p *parser) parseNode(addressCells, sizeCells uint32) (*Node, error) {
	for {
		tok := p.readU32()
		switch tok {
		case tokenNop:
			continue
		case tokenBeginNode:
			root, err := p.parseNodeBody(addressCells, sizeCells)
			if err != nil {
				return nil, err
			}
			if err := p.expectEnd(); err != nil {
				return nil, err
			}
			return root, nil
		case tokenEnd:
			return nil, fmt.Errorf("dtb: unexpected END token before root node")
		default:
			return nil, fmt.Errorf("dtb: unexpected token %#x before root node", tok)
		}
	}
}

// expectEnd scans past the root node's closing token for the FDT_END
// sentinel. A second BEGIN_NODE here means the blob declares more than one
// root, which this parser rejects rather than silently ignoring.
func (p *parser) expectEnd() error {
	for {
		tok := p.readU32()
		switch tok {
		case tokenNop:
			continue
		case tokenEnd:
			return nil
		case tokenBeginNode:
			return fmt.Errorf("dtb: nested BEGIN_NODE after root node closed")
		default:
			return fmt.Errorf("dtb: unexpected token %#x after root node", tok)
		}
	}
}

func (p *parser) parseNodeBody(addressCells, sizeCells uint32) (*Node, error) {
	name := p.readCString()
	n := &Node{Name: name, addressCells: addressCells, sizeCells: sizeCells}

	for {
		tok := p.readU32()

		switch tok {
		case tokenNop:
			continue
		case tokenProp:
			length := p.readU32()
			nameoff := p.readU32()
			value := p.struct_[p.off : p.off+int(length)]
			p.off = align4(p.off + int(length))

			propName := cStringAt(p.strings, int(nameoff))
			n.Properties = append(n.Properties, Property{Name: propName, Value: value})

			switch propName {
			case "#address-cells":
				addressCells = binary.BigEndian.Uint32(value)
			case "#size-cells":
				sizeCells = binary.BigEndian.Uint32(value)
			}
		case tokenBeginNode:
			child, err := p.parseNodeBody(addressCells, sizeCells)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		case tokenEndNode:
			return n, nil
		case tokenEnd:
			return nil, fmt.Errorf("dtb: unexpected END token before node %q closed", name)
		default:
			return nil, fmt.Errorf("dtb: unexpected token %#x in node %q", tok, name)
		}
	}
}

func cStringAt(b []byte, off int) string {
	end := off
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}

// MemoryRange returns the (base, length) reg entry of the tree's top-level
// "memory" node, as QEMU and the Raspberry Pi firmware both publish it.
func (t *Tree) MemoryRange() (base, length uint64, ok bool) {
	for _, c := range t.Root.Children {
		if c.Name == "memory" || (len(c.Name) > 7 && c.Name[:7] == "memory@") {
			regs := c.Regs()
			if len(regs) > 0 {
				return regs[0].Address, regs[0].Size, true
			}
		}
	}
	return 0, 0, false
}
