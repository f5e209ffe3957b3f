// Package engine serializes everything that happens to one game.
//
// The engine owns a game.Machine and applies start, input, exit and tick
// events to it from a single goroutine. Host code on any goroutine (socket
// readers, tickers, tests) only pushes events.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// 1. Events are pushed to an inbox
// 2. Engine.Run drains the inbox in arrival order
// 3. process routes each event to the machine
// 4. Accepted start/input/exit events are appended to the journal
// 5. Finished sessions are reported on Endings
//
// Journal:
// Each accepted input is stored with a Sequence number and the position of
// the moving layer at that instant. Replay feeds the journal back through a
// fresh machine, which reproduces the score and the sentinel verdict without
// depending on frame timing.
//
// Failure policy:
// A journal write error is logged and play continues. Gameplay itself has
// no failure path.
package engine
