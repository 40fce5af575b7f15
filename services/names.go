package services

// SampleNames is the account-lookup stand-in: a static display-name
// table, the shape a real user service would be wired behind.
type SampleNames struct{}

func (SampleNames) DisplayName(userID string) string {
	switch userID {
	case "alice":
		return "Alice"
	case "bob":
		return "Bob"
	case "admin":
		return "Administrator"
	case "all":
		return "Everyone"
	}
	return userID
}
