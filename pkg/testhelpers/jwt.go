// Package testhelpers provides containers, fixtures and tokens for tests.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// GenerateTestJWT creates an unsigned token (alg: none) for use when
// verification is disabled. The subject is the tenant's numeric user id and
// the audience is the service default.
func GenerateTestJWT(userID int64, email string) string {
	return GenerateTestJWTForSubject(strconv.FormatInt(userID, 10), email)
}

// GenerateTestJWTForSubject is GenerateTestJWT with a raw subject, for
// exercising malformed tenant ids.
func GenerateTestJWTForSubject(sub, email string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s","aud":"recipe-costing"`, sub)
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(userID int64, email string) string {
	return "Bearer " + GenerateTestJWT(userID, email)
}
