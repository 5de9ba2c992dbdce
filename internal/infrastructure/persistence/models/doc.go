// Package models contains GORM persistence models that map to database tables.
// Domain types stay free of ORM tags; each model converts with ToDomain and
// FromDomain, and repositories only read and write models.
//
// All instants are stored in UTC. Payment dates are civil dates and are
// stored as midnight UTC of their own calendar fields.
package models
