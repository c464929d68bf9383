// Package flock provides cross-platform exclusive file locks.
//
// forge takes a per-project lock before executing a recipe so two concurrent
// runs cannot interleave writes into the same tree. Locks are non-blocking:
// a held lock reports an error immediately instead of waiting.
//
// Import rules:
//   - CAN import: std lib, golang.org/x/sys (windows)
//   - MUST NOT import: internal packages
package flock
