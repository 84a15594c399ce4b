package api

import (
	"encoding/json"
	"log"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/webpool/core/codec"
	"github.com/searchktools/webpool/core/http"
)

// User is one entry of the in-memory user list
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Users is a small in-memory user store seeded with two users
type Users struct {
	mu     sync.RWMutex
	users  []User
	nextID int
}

// NewUsers returns a store holding Alice and Bob
func NewUsers() *Users {
	return &Users{
		users: []User{
			{ID: 1, Name: "Alice", Email: "alice@example.com"},
			{ID: 2, Name: "Bob", Email: "bob@example.com"},
		},
		nextID: 3,
	}
}

// List returns a copy of all users in insertion order
func (u *Users) List() []User {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make([]User, len(u.users))
	copy(out, u.users)
	return out
}

// Create appends a user and returns its id
func (u *Users) Create(user User) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	user.ID = u.nextID
	u.nextID++
	u.users = append(u.users, user)
	return user.ID
}

// Update overwrites the non-empty fields of user id. It reports whether the
// user exists.
func (u *Users) Update(id int, patch User) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	for i := range u.users {
		if u.users[i].ID != id {
			continue
		}
		if patch.Name != "" {
			u.users[i].Name = patch.Name
		}
		if patch.Email != "" {
			u.users[i].Email = patch.Email
		}
		return true
	}
	return false
}

// Delete removes user id and reports whether it existed
func (u *Users) Delete(id int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	for i := range u.users {
		if u.users[i].ID == id {
			u.users = append(u.users[:i], u.users[i+1:]...)
			return true
		}
	}
	return false
}

func (u *Users) list(req *http.Request) *http.Response {
	c := codec.ForAccept(req.Header(http.HeaderAccept))
	data, err := c.Encode(u.List())
	if err != nil {
		log.Printf("[api] encode users as %s: %v", c.Name(), err)
		return jsonError(500, "Internal Server Error")
	}
	return http.OK().
		WithHeader(http.HeaderContentType, c.ContentType()).
		WithBody(data)
}

func (u *Users) create(req *http.Request) *http.Response {
	log.Printf("[api] received POST data: %s", req.Body)
	id := u.Create(decodeUser(req))
	return message(201, map[string]any{"message": "User created successfully", "id": id})
}

func (u *Users) update(req *http.Request) *http.Response {
	log.Printf("[api] updating user 1 with data: %s", req.Body)
	u.Update(1, decodeUser(req))
	return message(200, map[string]any{"message": "User updated successfully"})
}

func (u *Users) remove(*http.Request) *http.Response {
	u.Delete(1)
	return message(200, map[string]any{"message": "User deleted successfully"})
}

// decodeUser reads whatever user fields the body carries. Payloads are not
// validated: an empty or undecodable body yields an empty User.
func decodeUser(req *http.Request) User {
	var user User
	if len(req.Body) == 0 {
		return user
	}

	c := codec.ForContentType(req.Header(http.HeaderContentType))
	if c.Name() == "protobuf" {
		var s structpb.Struct
		if err := c.Decode(req.Body, &s); err != nil {
			log.Printf("[api] ignoring protobuf body: %v", err)
			return user
		}
		fields := s.GetFields()
		user.Name = fields["name"].GetStringValue()
		user.Email = fields["email"].GetStringValue()
		return user
	}

	if err := c.Decode(req.Body, &user); err != nil {
		log.Printf("[api] ignoring %s body: %v", c.Name(), err)
		return User{}
	}
	return user
}

func message(code int, v any) *http.Response {
	resp, err := http.JSONValue(code, v)
	if err != nil {
		return jsonError(500, "Internal Server Error")
	}
	return resp
}

func jsonError(code int, msg string) *http.Response {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return http.JSON(code, "").WithBody(data)
}
