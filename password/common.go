package password

import "strings"

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password12", "password123", "password1234",
		"passw0rd", "p@ssw0rd", "p@ssword", "passpass", "changeme",
		"123456", "1234567", "12345678", "123456789", "1234567890",
		"123456789012", "111111", "000000", "123123", "654321",
		"121212", "666666", "1q2w3e4r", "1qaz2wsx", "zaq12wsx",
		"qwerty", "qwerty123", "qwertyuiop", "qazwsx", "asdfgh",
		"abc123", "letmein", "welcome", "welcome1", "welcome123",
		"admin", "admin123", "admin123456", "administrator", "root",
		"toor", "iloveyou", "monkey", "dragon", "master",
		"sunshine", "princess", "football", "baseball", "superman",
		"trustno1", "shadow", "secret", "login", "starwars",
	} {
		commonPasswords[p] = struct{}{}
	}
}

// IsCommon reports whether pw is on the built-in list of well-known weak
// passwords, compared case-insensitively.
func IsCommon(pw string) bool {
	_, ok := commonPasswords[strings.ToLower(pw)]
	return ok
}
