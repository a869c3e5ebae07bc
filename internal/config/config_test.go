package config

import "testing"

func TestParseAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	cfg, err := Parse([]byte(`
database:
  url: "user:pass@tcp(localhost:3306)/smartduka?parseTime=true"
redis:
  addr: "localhost:6379"
cors:
  allowed_origins: ["https://admin.smartduka.co.ke"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Address != ":4000" || cfg.Database.Driver != "mysql" || cfg.SMTP.Port != 587 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("jwt secret = %q", cfg.JWT.Secret)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown driver": "database: {driver: oracle, url: x}\njwt: {secret: s}",
		"missing url":    "jwt: {secret: s}",
		"missing secret": "database: {url: x}",
		"bad yaml":       "database: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
