// Package apperrors contains all common errors used by the back-office client.
package apperrors

import (
	"errors"
	"fmt"
)

var ErrTokenNotFound = fmt.Errorf("the token cannot be found")
var ErrNoRefreshToken = fmt.Errorf("no refresh token available, please login again")
var ErrSessionExpired = fmt.Errorf("session expired, please login again")
var ErrRefreshTimeout = fmt.Errorf("the token refresh did not complete in time")
var ErrConnection = fmt.Errorf("unable to connect to server, please check your internet connection")
var ErrInvalidTokenResponse = fmt.Errorf("invalid token response")
var ErrRoleNotAllowed = fmt.Errorf("you do not have permission to use the back office")
var ErrMissingCredentials = fmt.Errorf("the required credentials cannot be found")

// IsTerminal reports whether err ended the session, i.e. the caller has to login again.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNoRefreshToken)
}
