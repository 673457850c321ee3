package autoenrol

import "go.mongodb.org/mongo-driver/bson/primitive"

// User identifies the person viewing a course. Guest users have no ID.
type User struct {
	ID    primitive.ObjectID
	Name  string
	Guest bool
}

// GuestUser returns the anonymous identity.
func GuestUser() User {
	return User{Guest: true}
}

// Capabilities answers capability checks in the course context.
type Capabilities interface {
	Has(name string) bool
}

// Actor is a user acting with a set of capabilities.
type Actor struct {
	User
	Role string
	Caps Capabilities
}

// Can reports whether the actor holds the capability. Guests hold none.
func (a Actor) Can(capability string) bool {
	if a.Guest || a.Caps == nil {
		return false
	}
	return a.Caps.Has(capability)
}

// SystemActor is used for hooks the platform runs on its own behalf.
func SystemActor() Actor {
	return Actor{User: User{Name: "system"}, Role: "system", Caps: allowAll{}}
}

type allowAll struct{}

func (allowAll) Has(string) bool { return true }
