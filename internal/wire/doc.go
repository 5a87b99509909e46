// Package wire defines the transport-safe value model exchanged with callers.
//
// A wire value is a closed tree of JSON-like nodes. Types that JSON cannot
// carry natively are spelled as single-key marker objects:
//
//	{"__ref__": "users/alice"}                          document reference
//	{"__timestamp__": 1700000000000}                    instant, ms since epoch
//	{"__timestamp__": "now"}                            instant resolved at decode time
//	{"__geo__": {"latitude": 1.5, "longitude": 2.5}}    geographic coordinate
//
// The field-deletion marker is the Undefined node. It has no JSON
// counterpart, so the text form spells it {"__undefined__": true}.
//
// This package only models and (de)serializes values. Interpreting the
// marker shapes is the job of internal/codec.
package wire
