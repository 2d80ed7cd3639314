package models

// Identity is the person an access key was issued to.
type Identity struct {
	ID    string
	Name  string
	Email string // empty when the backend has none
	Role  string // empty when the backend has none
}

// Store is the monitored store an access key grants access to.
type Store struct {
	ID      string
	Name    string
	Address string // empty when the backend has none
}
