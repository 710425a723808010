// Package incast defines the tree representation that every compiler pass
// reads and rewrites.
//
// The vocabulary is closed. Node, Stmt, Expr and Clause are sealed
// interfaces implemented only by the pointer types in this package, so a
// type switch over them can be checked for exhaustiveness by reading this
// package alone.
//
// Every node carries a NodeID that is assigned the first time it is asked
// for. IDs are unique for the life of the process and are never reused, so
// side tables keyed by NodeID go stale in an observable way when a pass
// replaces a node: the old ID is simply no longer found in the new tree.
// Rewrite never copies an ID onto a rebuilt node.
//
// Structural equality (Equal) ignores IDs and compares canonical
// encodings.
package incast
