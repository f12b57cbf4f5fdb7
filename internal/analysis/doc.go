// Package analysis turns parsed field snapshots into structured physical
// results:
//
//   - [AnalyzeDomains]: domain segmentation, statistics, and wall density
//   - [AggregateEnergyGrids]: energy-density aggregation with per-region
//     breakdowns
//   - [AnalyzeTopology]: discrete topological charge and defect counting
//   - [Analyze]: all three over one grid, merged into one [Result]
//
// All functions are pure: they read an immutable grid and return fresh
// outputs, so the three analyzers may run concurrently over the same grid.
package analysis
