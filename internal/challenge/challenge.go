package challenge

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Type names a prompted gesture.
type Type string

const (
	LookLeft   Type = "look-left"
	LookRight  Type = "look-right"
	BlinkTwice Type = "blink-twice"
	Smile      Type = "smile"
	NodHead    Type = "nod-head"
)

// SequenceLength is the number of challenges drawn per verification attempt.
const SequenceLength = 3

// ErrSampleSize is returned when more challenges are requested than the catalog holds.
var ErrSampleSize = errors.New("invalid challenge sample size")

// Challenge is one prompted gesture. Completed is carried for display only;
// advancement never checks it.
type Challenge struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

var catalog = []Challenge{
	{ID: "1", Type: LookLeft, Description: "Look toward your left shoulder"},
	{ID: "2", Type: LookRight, Description: "Look toward your right shoulder"},
	{ID: "3", Type: BlinkTwice, Description: "Blink your eyes twice quickly"},
	{ID: "4", Type: Smile, Description: "Give a wide, natural smile"},
	{ID: "5", Type: NodHead, Description: "Nod your head up and down"},
}

// Catalog returns a copy of the static challenge bank.
func Catalog() []Challenge {
	out := make([]Challenge, len(catalog))
	copy(out, catalog)
	return out
}

// Sample draws n distinct challenges from the catalog in random order.
func Sample(rng *rand.Rand, n int) ([]Challenge, error) {
	if n <= 0 || n > len(catalog) {
		return nil, fmt.Errorf("%w: %d of %d", ErrSampleSize, n, len(catalog))
	}
	pool := Catalog()
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n:n], nil
}

// Describe joins challenge descriptions the way they are sent to the classifier.
func Describe(challenges []Challenge) string {
	parts := make([]string, 0, len(challenges))
	for _, c := range challenges {
		parts = append(parts, c.Description)
	}
	return strings.Join(parts, ", ")
}
