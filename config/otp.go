package config

import "time"

// SMSConfig contains configuration for the outbound SMS gateway.
type SMSConfig struct {
	// SendURL is the gateway's message submission endpoint. When empty, OTP
	// delivery is disabled and sends fail fast.
	SendURL string `env:"SEND_URL"`

	// MessageTemplate is the message body; it must contain a single %s where
	// the code is substituted.
	MessageTemplate string `env:"MESSAGE_TEMPLATE" envDefault:"Your verification code is %s"`

	// SuccessExpr is an optional JMESPath expression evaluated against the
	// gateway's JSON response; a falsy result counts as a delivery failure.
	SuccessExpr string `env:"SUCCESS_EXPR"`

	// Timeout bounds each delivery request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// OTPConfig groups phone challenge configuration.
type OTPConfig struct {
	// TTL is how long an issued code stays valid.
	TTL time.Duration `env:"OTP_TTL" envDefault:"5m"`

	// AttemptLimit is the number of wrong codes tolerated before the
	// challenge is destroyed.
	AttemptLimit int `env:"OTP_ATTEMPT_LIMIT" envDefault:"3"`

	// ResendCooldown is the minimum gap between resends per phone.
	// Zero disables throttling.
	ResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"30s"`

	// SMS gateway configuration.
	SMS SMSConfig `envPrefix:"SMS_"`
}

// Sanitize applies guardrails to OTP configuration values.
func (c *OTPConfig) Sanitize() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.AttemptLimit <= 0 {
		c.AttemptLimit = 3
	}
	if c.ResendCooldown < 0 {
		c.ResendCooldown = 0
	}
}
