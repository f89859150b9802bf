// Package content loads medical content records from YAML files and serves
// them from memory. Seed records are embedded for development and tests.
package content
