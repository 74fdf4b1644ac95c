package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080"`
	DebugPort         int           `env:"DEBUG_PORT"` // 0 disables the inspect view
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	BaseURL           string        `env:"BASE_URL,required=true"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,required=true"`
	MaxMediaBytes     int           `env:"MAX_MEDIA_BYTES,required=true"`
	CensoredWords     string        `env:"CENSORED_WORDS"`
	CensorReplacement string        `env:"CENSOR_REPLACEMENT,default=*"`
}

// WordList splits the comma-separated CENSORED_WORDS value, dropping blanks.
func (c Config) WordList() []string {
	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// ReplacementRune validates that CENSOR_REPLACEMENT is exactly one character.
func (c Config) ReplacementRune() (rune, error) {
	r := []rune(c.CensorReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSOR_REPLACEMENT must be a single character, got %q",
			c.CensorReplacement,
		)
	}
	return r[0], nil
}
