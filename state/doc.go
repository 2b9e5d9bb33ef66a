// Package state models a smart house: a House holds Rooms, a Room holds
// Devices, and every one of them is a Reporter.
//
// All values are validated when built and never change afterwards, so they
// can be read from any number of goroutines. To change the layout build a
// new House.
package state
