// Package codec translates between wire values and native store values.
//
// Decode walks a wire tree and resolves the marker shapes in a fixed order:
//
//  1. a map whose only key is "__ref__"        -> Reference
//  2. a map whose only key is "__timestamp__"  -> time.Time ("now" read from the clock)
//  3. a map whose only key is "__geo__"        -> GeoPoint
//  4. the Undefined marker                     -> Delete tombstone
//  5. anything else                            -> structural recursion
//
// A map that carries more than one reserved key, or a reserved key next to
// ordinary keys, is rejected with a *SchemaViolation rather than resolved by
// priority. Undefined beneath a list is rejected the same way.
//
// Encode is the inverse for everything a store can return. Timestamps come
// back as milliseconds, never as "now"; the tombstone has no encoding.
//
// Native values are plain Go values plus the Reference, GeoPoint and
// Tombstone types of this package. Store drivers translate them to SDK
// types. The codec never retains a value beyond a single call.
package codec
