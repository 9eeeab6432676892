// Package jwt validates the bearer tokens sent by intentflow API callers.
//
// Tokens are HMAC-signed (HS256, HS384 or HS512). The subject becomes the
// user id of every execution the caller submits; scopes gate the
// execution endpoints.
//
//	v, err := jwt.NewValidator(cfg)
//	claims, err := v.Parse(token) // *errors.AppError on failure
//	ctx = jwt.ContextWithClaims(ctx, claims)
package jwt
