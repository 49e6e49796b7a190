// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package graph is the persisted document model of an asset pipeline: nodes
// with typed, labeled ports and the edges wiring an output port to an input
// port.
//
// The document is owned by whoever edits it. The execution engine only reads
// it, and always through a Snapshot taken at the start of a pass, so edits
// made while a pass is in flight never leak into that pass.
//
// The package knows nothing about concrete processors. Two small interfaces,
// Checker and PortSource, let the processor registry decide which nodes may
// be connected and which ports a node exposes for its configuration.
package graph
