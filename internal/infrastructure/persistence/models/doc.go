// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel shared by every table
//   - ledger.go: products, ledger entries, line items, batches and batch movements
//
// The Postgres schema in migrations/ must stay in sync with these models;
// SQLite deployments and tests create the tables with AutoMigrate.
package models
