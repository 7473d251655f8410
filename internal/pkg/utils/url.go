package utils

import (
	"errors"
	"net/url"

	"github.com/asaskevich/govalidator"
)

// ErrInvalidURL is returned by ValidateURL
var ErrInvalidURL = errors.New("not a valid URL")

// ValidateURL checks that u is an absolute http or https URL
func ValidateURL(u *url.URL) error {
	if u == nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}

	if !govalidator.IsURL(u.String()) {
		return ErrInvalidURL
	}

	return nil
}
