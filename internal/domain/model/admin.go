package model

// Admin is one entry of the administrator roster. The phone doubles as the
// credential and is never serialised to clients.
type Admin struct {
	Name  string `json:"name"`
	Phone string `json:"-"`
}

// Matches reports whether name and phone identify a.
func (a Admin) Matches(name, phone string) bool {
	return NormalizeName(a.Name) == NormalizeName(name) &&
		NormalizePhone(a.Phone) == NormalizePhone(phone)
}
