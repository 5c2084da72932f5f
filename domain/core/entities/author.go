package entities

// Author is a public identity a user writes under. A user may hold several.
type Author struct {
	StableID    string `json:"stableId" yaml:"stableId"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// User is an account that owns one or more authors.
type User struct {
	ID      string   `json:"id" yaml:"id"`
	Authors []Author `json:"authors" yaml:"authors"`
}

// Owns reports whether the user may act as the given author.
func (u *User) Owns(authorStableID string) bool {
	for _, a := range u.Authors {
		if a.StableID == authorStableID {
			return true
		}
	}
	return false
}

// AuthorIDs returns the stable ids of every author the user owns.
func (u *User) AuthorIDs() []string {
	ids := make([]string, 0, len(u.Authors))
	for _, a := range u.Authors {
		ids = append(ids, a.StableID)
	}
	return ids
}
