// Package schema compiles CUE class definitions into distributed object
// classes whose attributes live in a map rather than in Go struct fields.
//
// A class file declares one or more classes under the class key:
//
//	class: Room: {
//		fields: {
//			name:      string
//			score:     int
//			open:      bool
//			seats:     [...int]
//			tags:      [...string]
//			players:   "oidlist"
//			occupants: "set"
//		}
//		sizes: seats: 4
//	}
//
// Array fields start with the length given under sizes (zero if absent).
// Set fields hold Records keyed by their id. Float types are refused so
// object digests stay stable across encodings.
package schema
