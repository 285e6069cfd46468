// Package store holds the persistence plumbing shared by the SQL task stores:
// the DBTX abstraction, transaction handling and the sentinel errors every
// store implementation maps its driver errors onto.
package store
