// common.go
//
// Linked project space synchronization service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of spacelink.
// spacelink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// spacelink is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with spacelink.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/localnerve/spacelink/internal/types"
)

// asCustomError maps domain and sync errors onto the transport error
// shape rendered by the central error handler. Unknown errors pass
// through and render as 500.
func asCustomError(err error) error {
	switch e := err.(type) {
	case *types.DomainLinkError:
		code := fiber.StatusBadRequest
		if strings.Contains(e.Message, "no ") || strings.Contains(e.Message, "not found") {
			code = fiber.StatusNotFound
		}
		return &types.CustomError{Code: code, Message: e.Message, Type: "links.domain"}
	case *types.UnsupportedActionError:
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: e.Message, Type: "links.unsupported"}
	case *types.AppEditingError:
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: e.Message, Type: "links.app"}
	case *types.MultimediaMissingError:
		return &types.CustomError{Code: fiber.StatusBadRequest, Message: e.Error(), Type: "links.multimedia"}
	case *types.RemoteAuthError:
		return &types.CustomError{Code: fiber.StatusBadGateway, Message: e.Error(), Type: "links.remote"}
	case *types.ActionNotPermitted:
		return &types.CustomError{Code: fiber.StatusForbidden, Message: e.Error(), Type: "links.remote"}
	case *types.RemoteRequestError:
		return &types.CustomError{Code: fiber.StatusBadGateway, Message: e.Error(), Type: "links.remote"}
	default:
		return err
	}
}

// parseFieldTypes extracts field_type query parameters, supporting both
// repeated keys and comma-separated values.
func parseFieldTypes(c *fiber.Ctx) []string {
	typeMap := make(map[string]struct{})

	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		if string(key) == "field_type" {
			vals := strings.Split(string(value), ",")
			for _, v := range vals {
				v = strings.TrimSpace(v)
				if v != "" {
					typeMap[v] = struct{}{}
				}
			}
		}
	}

	if len(typeMap) == 0 {
		return nil
	}

	fieldTypes := make([]string, 0, len(typeMap))
	for k := range typeMap {
		fieldTypes = append(fieldTypes, k)
	}
	return fieldTypes
}
