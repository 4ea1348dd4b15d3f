// Package ot implements the edit operations exchanged by collaborators and
// the pairwise transform used to reconcile concurrent edits.
//
// Positions and lengths are counted in UTF-16 code units so that offsets
// computed by browser clients (JavaScript strings) match the server exactly.
package ot

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf16"
)

// Type identifies the kind of edit an Operation performs
type Type string

const (
	// TypeInsert splices Chars into the content at Position
	TypeInsert Type = "insert"
	// TypeDelete removes Length units starting at Position
	TypeDelete Type = "delete"
)

var (
	// ErrUnknownType indicates that the operation type is neither insert nor delete
	ErrUnknownType = errors.New("unknown operation type")

	// ErrOutOfRange indicates that the operation does not fit the current content
	ErrOutOfRange = errors.New("operation out of range")
)

// Operation is a single edit. Insert uses Chars, Delete uses Length.
type Operation struct {
	Type     Type   `json:"type"`
	Chars    string `json:"chars,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Position int    `json:"position"`
	Length   int    `json:"length,omitempty"`
}

// Insert builds an insert operation
func Insert(position int, chars, userID string) Operation {
	return Operation{Type: TypeInsert, Position: position, Chars: chars, UserID: userID}
}

// Delete builds a delete operation
func Delete(position, length int, userID string) Operation {
	return Operation{Type: TypeDelete, Position: position, Length: length, UserID: userID}
}

// Validate checks the operation shape without looking at any content
func (op Operation) Validate() error {
	switch op.Type {
	case TypeInsert, TypeDelete:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, op.Type)
	}
	if op.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrOutOfRange, op.Position)
	}
	if op.Length < 0 {
		return fmt.Errorf("%w: negative length %d", ErrOutOfRange, op.Length)
	}
	return nil
}

// IsNoop reports whether applying the operation leaves any content unchanged
func (op Operation) IsNoop() bool {
	switch op.Type {
	case TypeInsert:
		return op.Chars == ""
	case TypeDelete:
		return op.Length == 0
	}
	return true
}

// Len returns the length of s in UTF-16 code units
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Apply returns content with op applied.
// Insert past the end of content fails with ErrOutOfRange.
// Delete is clamped to the content bounds.
func Apply(content string, op Operation) (string, error) {
	if err := op.Validate(); err != nil {
		return content, err
	}

	units := utf16.Encode([]rune(content))

	switch op.Type {
	case TypeInsert:
		if op.Position > len(units) {
			return content, fmt.Errorf("%w: insert at %d, content length %d", ErrOutOfRange, op.Position, len(units))
		}
		chars := utf16.Encode([]rune(op.Chars))
		out := make([]uint16, 0, len(units)+len(chars))
		out = append(out, units[:op.Position]...)
		out = append(out, chars...)
		out = append(out, units[op.Position:]...)
		return string(utf16.Decode(out)), nil

	default:
		start := min(op.Position, len(units))
		end := start + min(op.Length, len(units)-start)
		if start == end {
			return content, nil
		}
		out := make([]uint16, 0, len(units)-(end-start))
		out = append(out, units[:start]...)
		out = append(out, units[end:]...)
		return string(utf16.Decode(out)), nil
	}
}

// Clamp bounds a delete to content of the given length, so the stored and
// broadcast operation describes exactly the units that were removed.
// Inserts are returned unchanged.
func Clamp(op Operation, length int) Operation {
	if op.Type != TypeDelete {
		return op
	}
	op.Position = max(0, min(op.Position, length))
	op.Length = max(0, min(op.Length, length-op.Position))
	return op
}

// addSat adds two non-negative ints, saturating at math.MaxInt
func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
