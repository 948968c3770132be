package core

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// GameID identifies one leaderboard (board) in the ranking domain.
type GameID string

// UserID uniquely identifies a user within a game board.
type UserID string

// Input bounds accepted at the service boundary.
const (
	MaxIDLength     = 50
	MaxNameLength   = 50
	MaxParamsLength = 255
	MaxTop          = 100
)

// ScoreProps is the value stored for a (game, user) pair.
// A write fully replaces the previous value; empty Name or Params mean absent.
type ScoreProps struct {
	Score  float64 `json:"score"`
	Name   string  `json:"name,omitempty"`
	Params string  `json:"params,omitempty"`
}

// ScoreRecord is a ScoreProps projected together with its user id.
// It is produced by lookups and ranking reads only.
type ScoreRecord struct {
	UserID UserID `json:"userId"`
	ScoreProps
}

// NewRecord builds a record from a user id and its properties.
func NewRecord(user UserID, props ScoreProps) ScoreRecord {
	return ScoreRecord{UserID: user, ScoreProps: props}
}

// Validation errors returned by the Validate* helpers.
var (
	ErrEmptyID       = errors.New("id cannot be empty")
	ErrInvalidID     = errors.New("id must be 1-50 alphanumeric characters")
	ErrInvalidScore  = errors.New("score must be a finite number >= 0")
	ErrNameTooLong   = errors.New("name must be at most 50 characters")
	ErrParamsTooLong = errors.New("params must be at most 255 characters")
	ErrInvalidTop    = errors.New("nTop must be between 1 and 100")
)

func validateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s: %w", kind, ErrEmptyID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s: %w", kind, ErrInvalidID)
	}
	// ASCII letters and digits only, matching ^[A-Za-z0-9]*$ of the public API
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			continue
		}
		return fmt.Errorf("%s: %w", kind, ErrInvalidID)
	}
	return nil
}

// ValidateGameID ensures a non-empty alphanumeric game id of bounded length.
func ValidateGameID(g GameID) error { return validateID("gameId", string(g)) }

// ValidateUserID ensures a non-empty alphanumeric user id of bounded length.
func ValidateUserID(u UserID) error { return validateID("userId", string(u)) }

// Validate checks the score and the optional fields against the boundary contract.
func (p ScoreProps) Validate() error {
	if math.IsNaN(p.Score) || math.IsInf(p.Score, 0) || p.Score < 0 {
		return ErrInvalidScore
	}
	if utf8.RuneCountInString(p.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if utf8.RuneCountInString(p.Params) > MaxParamsLength {
		return ErrParamsTooLong
	}
	return nil
}

// ValidateTop ensures nTop is within the accepted range.
func ValidateTop(nTop int) error {
	if nTop < 1 || nTop > MaxTop {
		return ErrInvalidTop
	}
	return nil
}

// IsValidationError reports whether err came from one of the Validate* helpers.
func IsValidationError(err error) bool {
	for _, target := range []error{ErrEmptyID, ErrInvalidID, ErrInvalidScore, ErrNameTooLong, ErrParamsTooLong, ErrInvalidTop} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SortByScore orders records by descending score in place.
// Ties keep no particular order; callers must not rely on one.
func SortByScore(records []ScoreRecord) {
	slices.SortStableFunc(records, func(a, b ScoreRecord) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// TruncateTop returns at most n leading records. n <= 0 yields an empty slice.
func TruncateTop(records []ScoreRecord, n int) []ScoreRecord {
	if n <= 0 {
		return []ScoreRecord{}
	}
	if len(records) > n {
		return records[:n]
	}
	return records
}
