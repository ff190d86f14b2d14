package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Supabase = cfg.Supabase
	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Server = cfg.Server
	redact(&out.Server.AdminAPIKey)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.LLM = cfg.LLM
	redact(&out.LLM.APIKey)
	redact(&out.LLM.KeyPassword)

	out.Algorand = cfg.Algorand
	redact(&out.Algorand.AlgodToken)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	if cfg.Server.TrustedProxies != nil {
		out.Server.TrustedProxies = append([]string(nil), cfg.Server.TrustedProxies...)
	}
	if cfg.Tenants != nil {
		out.Tenants = make([]TenantConfig, len(cfg.Tenants))
		for i, t := range cfg.Tenants {
			t.Categories = append([]string(nil), t.Categories...)
			t.ReportKinds = append([]string(nil), t.ReportKinds...)
			out.Tenants[i] = t
		}
	}
	if cfg.Feeds.Sources != nil {
		out.Feeds.Sources = append([]FeedSource(nil), cfg.Feeds.Sources...)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
