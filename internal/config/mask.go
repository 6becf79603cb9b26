package config

import (
	"net/url"
	"regexp"
	"strings"
)

const mask = "xxxxx"

var (
	kvPassword = regexp.MustCompile(`(?i)\b(password|pwd)\s*=\s*[^;\s]*`)
	dsnUser    = regexp.MustCompile(`^([^:@/\s]+):([^@]*)@`)
)

// MaskConnectionString hides the password in URL, key=value and MySQL DSN forms.
func MaskConnectionString(s string) string {
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), mask)
			}
			s = u.String()
		}
	}
	s = kvPassword.ReplaceAllString(s, "${1}="+mask)
	if !strings.Contains(s, "://") {
		s = dsnUser.ReplaceAllString(s, "${1}:"+mask+"@")
	}
	return s
}
