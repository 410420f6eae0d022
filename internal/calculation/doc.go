// Package calculation holds the pure parts of the grade engine: averages at every level,
// letter grades, rounding, the recalculation plan over the level graph, and competition
// ranking. Nothing here performs I/O.
package calculation
