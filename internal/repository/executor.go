package repository

import "github.com/jmoiron/sqlx"

// executor returns tx when a caller runs inside a transaction and the pool otherwise.
func executor(db *sqlx.DB, tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return db
}
