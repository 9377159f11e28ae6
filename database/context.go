package database

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// TxLocalKey is the fiber.Ctx locals key holding a request-scoped transaction.
const TxLocalKey = "tx"

// FromCtx returns the *gorm.DB a handler should use. It prefers the
// transaction opened for the request (see middlewares.Idempotency), else a
// session on db bound to the request context.
func FromCtx(c *fiber.Ctx, db *gorm.DB) *gorm.DB {
	if v := c.Locals(TxLocalKey); v != nil {
		if tx, ok := v.(*gorm.DB); ok && tx != nil {
			return tx
		}
	}
	return db.WithContext(c.UserContext())
}
