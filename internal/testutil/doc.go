// Package testutil provides deterministic fixtures shared by tests.
//
// NewFixedClock pins the time read by timestamp encoders, and
// NewFixedIDGenerator pins operation ids, so rewritten arguments and scenario
// traces are byte-identical across runs. BlogFacts builds the blog schema
// (User, Profile, Post, Comment) used throughout the package tests.
package testutil
