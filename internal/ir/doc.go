// Package ir provides the value tree used for operation arguments and results.
//
// Every argument tree handed to the rewrite engine and every raw result handed
// back by a store is an IRValue. ir imports nothing internal; all other
// internal packages import ir.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers, RFC 3339 strings for times
//   - A nil IRValue stored under an IRObject key means "undefined": the key is
//     present but carries no value, and is skipped by every marshaler
//   - IRNull is an explicit null and is never treated as undefined
package ir
