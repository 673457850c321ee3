package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/dalemusser/autoenrol/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID   string
	Name string
	Role string
}

func testUser(name, role string) TestUser {
	return TestUser{ID: primitive.NewObjectID().Hex(), Name: name, Role: role}
}

// StudentUser returns a TestUser with the student role.
func StudentUser() TestUser { return testUser("Test Student", "student") }

// EditingTeacherUser returns a TestUser with the editingteacher role.
func EditingTeacherUser() TestUser { return testUser("Test Teacher", "editingteacher") }

// ManagerUser returns a TestUser with the manager role.
func ManagerUser() TestUser { return testUser("Test Manager", "manager") }

// AdminUser returns a TestUser with the admin role.
func AdminUser() TestUser { return testUser("Test Admin", "admin") }

// ObjectID returns the user's ID as an ObjectID.
func (u TestUser) ObjectID() primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(u.ID)
	return id
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:   user.ID,
		Name: user.Name,
		Role: user.Role,
	})
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates an HTTP request with body encoded as JSON.
func NewJSONRequest(method, target string, body any) *http.Request {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}
