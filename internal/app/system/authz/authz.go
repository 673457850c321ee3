// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/autoenrol/internal/app/system/auth"
	"github.com/dalemusser/autoenrol/internal/app/system/autoenrol"
	"github.com/dalemusser/autoenrol/internal/app/system/capabilities"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "guest", "", NilObjectID, false, so ok=true always means a signed-in user
// with a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return capabilities.RoleGuest, "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session: fail closed.
		return capabilities.RoleGuest, "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// Actor returns the acting user with the capabilities of their role.
// Requests without a valid session user act as a guest with no capabilities.
func Actor(r *http.Request) autoenrol.Actor {
	role, name, userID, ok := UserCtx(r)
	if !ok || role == capabilities.RoleGuest {
		return autoenrol.Actor{User: autoenrol.GuestUser(), Role: capabilities.RoleGuest, Caps: capabilities.Set{}}
	}
	return autoenrol.Actor{
		User: autoenrol.User{ID: userID, Name: name},
		Role: role,
		Caps: capabilities.ForRole(role),
	}
}

// Has reports whether the current request's user holds the capability.
func Has(r *http.Request, capability string) bool {
	return Actor(r).Can(capability)
}
