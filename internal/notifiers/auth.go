package notifiers

import (
	"encoding/base64"

	"github.com/Fullex26/camnotify/pkg/models"
)

// AuthHeader is the value of an Authorization header
type AuthHeader struct {
	Scheme    string
	Parameter string
}

func (h AuthHeader) String() string {
	return h.Scheme + " " + h.Parameter
}

// BuildAuthHeader derives the Authorization header for the given scheme.
// It returns nil for AuthNone. Credentials are not validated here.
func BuildAuthHeader(method models.AuthorizationMethod, username, password, token string) *AuthHeader {
	switch method {
	case models.AuthBasic:
		return &AuthHeader{
			Scheme:    "Basic",
			Parameter: base64.StdEncoding.EncodeToString([]byte(username + ":" + password)),
		}
	case models.AuthBearer:
		return &AuthHeader{Scheme: "Bearer", Parameter: token}
	}
	return nil
}
