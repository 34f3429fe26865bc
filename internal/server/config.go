package server

import "time"

type Config struct {
	Addr      string
	JWTIssuer string
	TokenTTL  time.Duration

	// Viewers maps viewer ids to their login secrets. The daemon loads
	// it from the YAML config; no durable user store (non-goal).
	Viewers map[string]string

	// ChainRPC points at a JSON-RPC node for the chain-hash entropy
	// source. Empty disables the source.
	ChainRPC string

	// Fragment backends. FragmentDir always backs the primary store;
	// the rest are attached per timeline when configured.
	FragmentDir         string
	MongoURI            string
	MongoDB             string
	FragmentsCollection string
	SQLitePath          string
	ShadowSecret        string
	ShadowSalt          string
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8089"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "veil-backend"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
	if c.FragmentDir == "" {
		c.FragmentDir = "./fragments"
	}
	if c.FragmentsCollection == "" {
		c.FragmentsCollection = "fragments"
	}
}
