package config

// APIConfig defines the HTTP control surface.
type APIConfig struct {
	// Addr enables the API server when set, e.g. ":8080".
	Addr string `json:"addr"`
	// Token is required as a Bearer token when non-empty.
	Token string `json:"token"`
}
