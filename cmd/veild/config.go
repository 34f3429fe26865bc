package main

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/project-89/Quantum-Veil/internal/server"
)

// fileConfig is the YAML shape of the daemon configuration.
type fileConfig struct {
	Addr      string            `yaml:"addr"`
	JWTIssuer string            `yaml:"jwt_issuer"`
	TokenTTLs int64             `yaml:"token_ttl_s"`
	Viewers   map[string]string `yaml:"viewers"`
	ChainRPC  string            `yaml:"chain_rpc"`
	Fragments fragmentsConfig   `yaml:"fragments"`
}

type fragmentsConfig struct {
	Dir          string `yaml:"dir"`
	MongoURI     string `yaml:"mongo_uri"`
	MongoDB      string `yaml:"mongo_db"`
	Collection   string `yaml:"collection"`
	SQLitePath   string `yaml:"sqlite_path"`
	ShadowSecret string `yaml:"shadow_secret"`
	ShadowSalt   string `yaml:"shadow_salt"`
}

func (c *fileConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Viewers, validation.Required),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Fragments,
		validation.Field(&c.Fragments.ShadowSalt,
			validation.When(c.Fragments.ShadowSecret != "", validation.Required)),
	)
}

func (c *fileConfig) serverConfig() server.Config {
	return server.Config{
		Addr:                c.Addr,
		JWTIssuer:           c.JWTIssuer,
		TokenTTL:            time.Duration(c.TokenTTLs) * time.Second,
		Viewers:             c.Viewers,
		ChainRPC:            c.ChainRPC,
		FragmentDir:         c.Fragments.Dir,
		MongoURI:            c.Fragments.MongoURI,
		MongoDB:             c.Fragments.MongoDB,
		FragmentsCollection: c.Fragments.Collection,
		SQLitePath:          c.Fragments.SQLitePath,
		ShadowSecret:        c.Fragments.ShadowSecret,
		ShadowSalt:          c.Fragments.ShadowSalt,
	}
}
