// Package harness runs scripted play scenarios against the game machine.
//
// A scenario drives one session through start, clock waits, motion ticks,
// key and pointer input and exit, then checks the recorded trace and final
// state. Every run uses a manual clock and a fixed camera seed, so the same
// scenario always produces the same trace and can be compared against a
// golden file.
//
// # Scenario Format
//
//	name: cut_then_miss
//	description: "An offset placement is trimmed, a wide miss ends the game"
//	profile: pro
//	token: tok-cut
//	steps:
//	  - action: start
//	  - action: wait
//	    duration: 600ms
//	  - action: key
//	    position: 2.0
//	    expect: { placed: true, overlap_milli: 2500 }
//	  - action: click
//	    x: 700
//	    y: 400
//	    viewport_w: 1280
//	    viewport_h: 720
//	  - action: exit
//	assertions:
//	  - type: trace_count
//	    action: key
//	    count: 1
//	  - type: final_state
//	    expect: { state: game_over, score: 1 }
//
// # Actions
//
//   - start: begin a session with the scenario's token and nonce
//   - wait: advance the clock by duration without moving the tower
//   - tick: advance the clock by duration and move the tower by it
//   - key, click: confirm a placement; position first pins the active layer
//   - exit: leave the game
//
// # Trace Values
//
// Trace events hold integers, booleans and strings only, so they serialize
// through canonical JSON. Lengths are recorded in thousandths (overlap_milli).
//
// # Assertion Types
//
//   - trace_contains: an event with the action and a subset of fields exists
//   - trace_order: the actions first appear in the given order
//   - trace_count: the action appears exactly count times
//   - final_state: the final state contains the expected fields
package harness
