package services

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonusfinder-backend/internal/platform/dbctx"
)

// inTx runs fn in a transaction. When dbc already carries one, fn runs in a
// savepoint so a failure only unwinds its own writes.
func inTx(dbc dbctx.Context, db *gorm.DB, fn func(dbctx.Context) error) error {
	return dbc.DB(db).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Context(), Tx: tx})
	})
}
