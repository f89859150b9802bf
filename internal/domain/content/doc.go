// Package content contains the Content bounded context.
// A content record is the structured evidence and recommendation data for
// one medical topic, keyed by a slug identifier. Records are authored
// elsewhere; this context only models them and defines how they are looked up.
package content
