package access

import (
	"encoding/json"
	"strings"

	"github.com/visenty/companion/internal/models"
)

// notAvailable is what the backend sends for fields it has no value for.
const notAvailable = "N/A"

// flexString accepts a JSON string, number or null. Backends disagree on
// whether ids are numeric.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// person is the identity object returned by /api/validate_access.
type person struct {
	ID    flexString `json:"id"`
	Name  flexString `json:"name"`
	Email flexString `json:"email"`
	Role  flexString `json:"role"`
}

// storeInfo is the store object returned by /api/validate_access and
// /api/store/info.
type storeInfo struct {
	ID      flexString `json:"id"`
	Name    flexString `json:"name"`
	Address flexString `json:"address"`
}

// validateAccessResponse is the body of /api/validate_access.
type validateAccessResponse struct {
	Success *bool     `json:"success"`
	Person  person    `json:"person"`
	Store   storeInfo `json:"store"`
}

// legacyUser is the flatter user object of /api/access/{key}.
type legacyUser struct {
	ID       flexString  `json:"id"`
	PersonID flexString  `json:"person_id"`
	Name     flexString  `json:"name"`
	Email    flexString  `json:"email"`
	Role     flexString  `json:"role"`
	Stores   []storeInfo `json:"stores"`
}

// legacyAccessResponse is the body of /api/access/{key}. Some servers wrap
// the user in a "user" field, others return it at the top level.
type legacyAccessResponse struct {
	User *legacyUser `json:"user"`
	legacyUser
}

func (r *legacyAccessResponse) user() *legacyUser {
	if r.User != nil {
		return r.User
	}
	return &r.legacyUser
}

// clean trims v and maps the backend's "N/A" placeholder to absent.
func clean[S ~string](v S) string {
	s := strings.TrimSpace(string(v))
	if s == notAvailable {
		return ""
	}
	return s
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// normalizeIdentity converts a backend person into an Identity. Returns nil
// when the payload carries nothing usable.
func normalizeIdentity(id, name, email, role string) *models.Identity {
	id, name, email, role = clean(id), clean(name), clean(email), clean(role)
	if id == "" && name == "" && email == "" {
		return nil
	}

	return &models.Identity{
		ID:    id,
		Name:  orDefault(name, models.DefaultIdentityName),
		Email: email,
		Role:  role,
	}
}

// normalizeStore converts a backend store into a Store. Returns nil when the
// payload carries nothing usable.
func normalizeStore(s storeInfo) *models.Store {
	id, name, address := clean(s.ID), clean(s.Name), clean(s.Address)
	if id == "" && name == "" && address == "" {
		return nil
	}

	return &models.Store{
		ID:      id,
		Name:    orDefault(name, models.DefaultStoreName),
		Address: address,
	}
}

func (p person) identity() *models.Identity {
	return normalizeIdentity(string(p.ID), string(p.Name), string(p.Email), string(p.Role))
}

func (u *legacyUser) identity() *models.Identity {
	id := clean(u.ID)
	if id == "" {
		id = clean(u.PersonID)
	}
	name := clean(u.Name)
	if name == "" {
		name = clean(u.Email)
	}
	return normalizeIdentity(id, name, string(u.Email), string(u.Role))
}

func (u *legacyUser) store() *models.Store {
	for _, s := range u.Stores {
		if st := normalizeStore(s); st != nil {
			return st
		}
	}
	return nil
}
