// Package core defines the shared language of the OLAP engine.
//
// This package contains:
//   - Schema entities (Cube, Dimension, Hierarchy, Level, Star, AggStar)
//   - Members and their keys (Member, RolapMember, CubeMember, NullKey)
//   - Query context (Evaluator, Role, Expression)
//   - Adapter data types (AdapterConfig, TableMetadata, DialectConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
