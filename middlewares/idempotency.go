package middlewares

import (
	"bytes"
	"strings"

	"newsletter-backend/database"
	"newsletter-backend/idempotency"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	idempotencyFormField = "idempotency_key"
)

// Headers that describe the connection or the current request rather than
// the operation's result. They are neither stored nor replayed.
var volatileHeaders = map[string]struct{}{
	"content-length": {},
	"date":           {},
	"server":         {},
	"connection":     {},
	"vary":           {},
}

var volatilePrefixes = []string{"access-control-", "x-ratelimit-"}

// Idempotency guards mutating routes. The key comes from the Idempotency-Key
// header or the idempotency_key form field and is scoped to the
// authenticated user, so run it after JWTAuth.
//
// The claim transaction is exposed to the handler through database.FromCtx.
// A handler error rolls everything back and releases the key; otherwise the
// handler's response is stored and committed together with the handler's
// writes, and the stored copy is what the client receives.
func Idempotency(store *idempotency.Store, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) (err error) {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		default:
			return c.Next()
		}

		raw := c.Get(idempotencyHeader)
		if raw == "" {
			raw = c.FormValue(idempotencyFormField)
		}
		key, err := idempotency.ParseKey(raw)
		if err != nil {
			return err
		}

		userID, _ := c.Locals(UserIDLocal).(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		log := logger.With(zap.String("user_id", userID), zap.String("idempotency_key", key.String()))
		ctx := c.UserContext()

		claim, err := store.ClaimOrReplay(ctx, key, userID)
		if err != nil {
			return err
		}
		if claim.Outcome == idempotency.Replay {
			log.Info("replaying saved response", zap.Int("status", claim.Response.StatusCode))
			writeResponse(c, claim.Response)
			return nil
		}

		handle := claim.Handle
		defer func() {
			if r := recover(); r != nil {
				_ = handle.Rollback()
				panic(r)
			}
			if err != nil {
				if rbErr := handle.Rollback(); rbErr != nil {
					log.Error("claim rollback failed", zap.Error(rbErr))
				}
			}
		}()

		c.Locals(database.TxLocalKey, handle.Tx())
		err = c.Next()
		c.Locals(database.TxLocalKey, nil)
		if err != nil {
			return err
		}

		produced := captureResponse(c)
		stored, err := store.CommitResponse(ctx, handle, produced)
		if err != nil {
			for _, h := range produced.Headers {
				c.Response().Header.Del(h.Name)
			}
			return err
		}

		writeResponse(c, stored)
		return nil
	}
}

func isVolatile(name string) bool {
	name = strings.ToLower(name)
	if _, ok := volatileHeaders[name]; ok {
		return true
	}
	for _, p := range volatilePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func captureResponse(c *fiber.Ctx) idempotency.Response {
	resp := c.Response()

	var headers idempotency.HeaderCollection
	resp.Header.VisitAll(func(k, v []byte) {
		name := string(k)
		if isVolatile(name) {
			return
		}
		headers = append(headers, idempotency.Header{Name: name, Value: bytes.Clone(v)})
	})

	return idempotency.Response{
		StatusCode: resp.StatusCode(),
		Headers:    headers,
		Body:       bytes.Clone(resp.Body()),
	}
}

// writeResponse replaces status, body and every stored header on c with the
// saved values. Headers the response does not carry (CORS, rate limit) are
// left as set for this request.
func writeResponse(c *fiber.Ctx, r idempotency.Response) {
	resp := c.Response()

	cleared := make(map[string]struct{}, len(r.Headers))
	for _, h := range r.Headers {
		if _, done := cleared[h.Name]; !done {
			resp.Header.Del(h.Name)
			cleared[h.Name] = struct{}{}
		}
	}
	for _, h := range r.Headers {
		resp.Header.AddBytesV(h.Name, h.Value)
	}

	resp.SetStatusCode(r.StatusCode)
	resp.SetBody(r.Body)
}
