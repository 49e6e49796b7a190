// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package graph

import "errors"

var (
	// ErrNotFound is returned when a node, port or edge does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an ID is already taken.
	ErrDuplicate = errors.New("duplicate id")
	// ErrDirectionMismatch is returned when an edge would not run from an
	// output port to an input port.
	ErrDirectionMismatch = errors.New("edges must connect an output port to an input port")
	// ErrIncompatible is returned when the processors of two nodes may not
	// be connected.
	ErrIncompatible = errors.New("incompatible processors")
	// ErrDangling is returned by Validate for edges whose endpoints are gone.
	ErrDangling = errors.New("dangling edge")
)
