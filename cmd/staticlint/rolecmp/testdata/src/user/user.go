package user

func parse(value string) int {
	switch value {
	case "ADMIN":
		return 1
	case "USER":
		return 2
	}
	if value == "ADMIN" {
		return 1
	}
	return 0
}
