package model

// Placeholders rendered (and exported) in place of absent contact fields.
const (
	NoName  = "No Name"
	NoPhone = "No Phone"
)

// Contact is one entry of the user's Google contacts.
//
// Upstream a person may carry several names and phone numbers; only the first
// of each is kept. An empty Name or Phone means the field was absent.
type Contact struct {
	ResourceName string `json:"resourceName"` // e.g. "people/c123", opaque to us
	Name         string `json:"name"`
	Phone        string `json:"phone"`
}

// DisplayName returns the contact's name or the NoName placeholder.
func (c Contact) DisplayName() string {
	if c.Name == "" {
		return NoName
	}
	return c.Name
}

// DisplayPhone returns the contact's phone number or the NoPhone placeholder.
func (c Contact) DisplayPhone() string {
	if c.Phone == "" {
		return NoPhone
	}
	return c.Phone
}
