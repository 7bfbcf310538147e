// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package testinfra provides in-process fakes for the engine's external
// dependencies. Tests that want to exercise the real provider client end
// to end point it at a FakeProvider instead of stubbing the client
// interface.
package testinfra
