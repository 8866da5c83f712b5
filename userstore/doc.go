// Package userstore persists account credential records in Redis.
//
// Each account occupies two keys: a record blob under "au:<userID>" and
// a username index entry under "aun:<username>" pointing at the userID.
// The index entry is written with SETNX so that two concurrent
// registrations of the same username cannot both succeed.
package userstore
