package principal

import "github.com/gofiber/fiber/v2"

// Locals key under which the auth middleware stores the verified principal.
const LocalsKey = "PRINCIPAL"

// Principal is the verified caller identity attached to a request by the auth
// middleware. It is derived exclusively from the verified ID token; request
// bodies never contribute identity fields.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// FromCtx retrieves the verified principal from the fiber context.
// The second return is false on unauthenticated routes.
func FromCtx(c *fiber.Ctx) (Principal, bool) {
	if v := c.Locals(LocalsKey); v != nil {
		if p, ok := v.(Principal); ok {
			return p, true
		}
	}
	return Principal{}, false
}
