// Package dsl is the fluent configuration surface: entity, property, and
// discriminator builders plus the ModelBuilder registry that orchestrates
// configuration application, validation, and freezing. Engine packages wrap
// ModelBuilder and translate the frozen definitions into native settings.
//
// Builders accumulate shadow state per property and commit only the fields
// that were explicitly set, so several configuration objects can contribute
// to the same entity incrementally. Errors raised while chaining are recorded
// and surfaced from Build, keeping call sites fluent.
package dsl
