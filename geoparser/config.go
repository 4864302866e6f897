package geoparser

type Config struct {
	// PreferredLocalization selects name:<lang> tags over name when present.
	PreferredLocalization string
}

func ConfigDefault() Config {
	return Config{
		PreferredLocalization: "",
	}
}
