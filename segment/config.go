package segment

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidSeasonFactor = errors.New("season factor must be within [0, 1]")

type Config struct {
	// SeasonFactor scales every effective speed for the whole run.
	SeasonFactor float64
	// SeasonUnpavedOnly leaves paved surfaces at full speed.
	SeasonUnpavedOnly bool
}

func ConfigDefault() Config {
	return Config{
		SeasonFactor: 1.0,
	}
}

func (c Config) Validate() error {
	if math.IsNaN(c.SeasonFactor) || c.SeasonFactor < 0 || c.SeasonFactor > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidSeasonFactor, c.SeasonFactor)
	}
	return nil
}
