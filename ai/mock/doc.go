// Package mock provides test doubles for the ai package interfaces.
//
// The mocks use deterministic, hash-seeded behavior by default so tests
// produce stable results without external services, and expose function
// fields for injecting custom behavior per test.
package mock
