// Package fleet holds the domain model of a fleet deployment: device targets,
// the per-device update phases, and the ordered report of outcomes.
package fleet
