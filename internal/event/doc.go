// Package event defines the Tellus analytical domain model: tagged events,
// the controlled vocabularies they are tagged with (networks, layers,
// ontology nodes, alert levels, coupling patterns, source tiers), threshold
// metrics and crossings, convergence scores, and the fixed threshold catalog.
package event
