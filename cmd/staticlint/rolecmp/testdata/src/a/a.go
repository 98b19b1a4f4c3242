package a

func isAdmin(role string) bool {
	return role == "ADMIN" // want `compare with user.Role instead of the literal "ADMIN"`
}

func isNotUser(role string) bool {
	return "USER" != role // want `compare with user.Role instead of the literal "USER"`
}

func describe(role string) string {
	switch role {
	case "ADMIN": // want `switch on user.Role instead of the literal "ADMIN"`
		return "administrator"
	case "GUEST":
		return "guest"
	}
	return ""
}

func unrelated(name string) bool {
	return name == "admin" || name == "USERS"
}
