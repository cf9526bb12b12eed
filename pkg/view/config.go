package view

// Config controls how identifiers are turned into engine template names.
type Config struct {
	// Extension is appended to every candidate name.
	Extension string `json:"extension"`
	// Sentinel is the generic identifier that is never decomposed.
	Sentinel string `json:"sentinel"`
	// Fallback is the name, without extension, tried after every cascade.
	Fallback string `json:"fallback"`
	// PassThrough hands the raw identifier to the engine when no candidate
	// exists, so the engine reports the missing template itself.
	PassThrough bool `json:"pass_through"`
	// MaxNotices bounds the number of operator notices kept.
	MaxNotices int `json:"max_notices"`
}

// DefaultConfig returns the standard view configuration.
func DefaultConfig() *Config {
	return &Config{
		Extension:   ".html",
		Sentinel:    "index",
		Fallback:    "index",
		PassThrough: true,
		MaxNotices:  50,
	}
}

func (c *Config) fallbackName() string {
	if c.Fallback == "" {
		return ""
	}
	return c.Fallback + c.Extension
}
