package models

// Identity is the verified user attached to a transport at connect time.
// It is issued once by the auth collaborator and treated as opaque by the
// relay beyond the stable ID.
type Identity struct {
	ID      string `json:"id"`      // stable identity (email)
	Name    string `json:"name"`    // display name
	Picture string `json:"picture"` // avatar URL
}
