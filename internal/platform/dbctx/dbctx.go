package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// WithTx returns a copy of c bound to tx.
func (c Context) WithTx(tx *gorm.DB) Context {
	return Context{Ctx: c.Context(), Tx: tx}
}

// Context never returns nil.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Transaction runs fn inside a transaction. When c already carries one, fn
// runs under a savepoint of it, so a failure still undoes only fn's writes.
func Transaction(c Context, db *gorm.DB, fn func(inner Context) error) error {
	base := db
	if c.Tx != nil {
		base = c.Tx
	}
	return base.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		return fn(c.WithTx(tx))
	})
}
