// Package sqlstore persists relay events with bun, through go-repository-bun
// repositories, on SQLite or Postgres.
package sqlstore
