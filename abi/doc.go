// Package abi maps host scalar types to their sandbox representation.
//
// A Descriptor captures the two width parameters a sandbox ABI can vary:
// the width of its pointers and the width of its "natural" integer. Fixed
// width types (u8..u64, f32, f64) keep their width in every ABI; int,
// uint and pointers take the descriptor's width.
//
// Conversion to a narrower sandbox width truncates deterministically,
// matching unsigned modular arithmetic. Narrowing is never an error: the
// sandbox width is a fixed contract the host opted into.
package abi
