// Package reflow lays out a single run of text so that it flows around
// rectangular obstacles stacked along one edge of a container.
//
// A layout pass is a pure function of its Input and a Measurer. Each line's
// origin and available width come from the obstacle Profile at the line's
// top edge. When the container height or the line cap runs out, the last
// line is clipped or ellipsized and the pass stops.
// Nothing is cached between passes, so independent passes may run on
// different goroutines.
package reflow
