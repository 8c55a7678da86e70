package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/registry"
	"github.com/localnerve/spacelink/internal/remote"
	"github.com/localnerve/spacelink/internal/types"
)

// RequireAPIKey authenticates linked-data requests against the api
// client table. The header shape is "Authorization: ApiKey user:key".
func RequireAPIKey(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username, key, ok := parseAPIKey(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "ApiKey authorization required",
				Type:    "links.authorization.apikey",
			}
		}

		var client models.APIClient
		err := db.Where("username = ? AND api_key = ? AND active = ?", username, key, true).
			First(&client).Error
		if err == gorm.ErrRecordNotFound {
			return &types.CustomError{
				Code:    fiber.StatusUnauthorized,
				Message: "Invalid api key",
				Type:    "links.authorization.apikey",
			}
		}
		if err != nil {
			return err
		}

		c.Locals("apiClient", client.Username)
		return c.Next()
	}
}

// RequireLinkPartner verifies the caller identified by the requester
// header is an active downstream partner of the master domain in the
// path. The release-source endpoint skips this and checks the app's
// own allowlist instead.
func RequireLinkPartner(reg *registry.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requester := c.Get(remote.CallerHeader)
		if requester == "" {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "Requester identity header missing",
				Type:    "links.authorization.partner",
			}
		}

		active, err := reg.IsActiveDownstream(c.Params("domain"), requester)
		if err != nil {
			return err
		}
		if !active {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "Requester is not an active downstream of this domain",
				Type:    "links.authorization.partner",
			}
		}

		c.Locals("requester", requester)
		return c.Next()
	}
}

func parseAPIKey(header string) (username, key string, ok bool) {
	const prefix = "ApiKey "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	parts := strings.SplitN(header[len(prefix):], ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
