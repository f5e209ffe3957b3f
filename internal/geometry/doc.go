// Package geometry implements the layer-cut algorithm that advances the tower.
//
// Every function here is pure: no I/O, no clocks, no randomness. Given the
// moving layer and the layer beneath it, CutLayer either reports a miss or
// returns the trimmed layer plus the cosmetic debris slice.
//
// # Cut Rules
//
// For a moving layer on axis d:
//
//	delta   = top.pos[d] - base.pos[d]
//	size    = top size along d
//	diff    = |delta|
//	overlap = size - diff
//
// overlap <= 0 is a miss. Otherwise the along-axis size becomes overlap, the
// centre moves by -delta/2 and the overhang of length diff becomes debris.
// Nothing is snapped or rounded: precision equals player precision.
package geometry
