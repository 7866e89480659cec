package common

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the authorization scheme accepted by the HTTP API.
const BearerScheme = "bearer"
