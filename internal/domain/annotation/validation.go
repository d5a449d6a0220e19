package annotation

import (
	"strings"

	"github.com/rpggio/annotask/internal/domain/catalog"
)

// ValidateCorrection checks a correction submitted with an incorrect verdict.
// A nil original skips the comparison and only checks for emptiness.
func ValidateCorrection(original catalog.Payload, c *Correction) error {
	if c == nil {
		return ErrEmptyCorrection
	}

	switch orig := original.(type) {
	case catalog.Legacy:
		if c.Translation == nil {
			if len(c.Conversations) > 0 {
				return ErrShapeMismatch
			}
			return ErrEmptyCorrection
		}
		edited := strings.TrimSpace(*c.Translation)
		if edited == "" || edited == strings.TrimSpace(orig.Translation) {
			return ErrEmptyCorrection
		}
		return nil
	case catalog.Conversation:
		if c.Translation != nil && len(c.Conversations) == 0 {
			return ErrShapeMismatch
		}
		if err := checkTurns(c.Conversations); err != nil {
			return err
		}
		if sameTurns(orig.Turns, c.Conversations) {
			return ErrEmptyCorrection
		}
		return nil
	default:
		if c.Translation != nil {
			if strings.TrimSpace(*c.Translation) == "" {
				return ErrEmptyCorrection
			}
			return nil
		}
		return checkTurns(c.Conversations)
	}
}

// Normalize returns a copy with surrounding whitespace trimmed from edited text.
func Normalize(c *Correction) *Correction {
	if c == nil {
		return nil
	}
	out := &Correction{}
	if c.Translation != nil {
		t := strings.TrimSpace(*c.Translation)
		out.Translation = &t
	}
	if c.Conversations != nil {
		out.Conversations = make([]catalog.Turn, len(c.Conversations))
		for i, turn := range c.Conversations {
			out.Conversations[i] = catalog.Turn{Role: turn.Role, Content: strings.TrimSpace(turn.Content)}
		}
	}
	return out
}

func checkTurns(turns []catalog.Turn) error {
	if len(turns) == 0 {
		return ErrEmptyCorrection
	}
	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) == "" {
			return ErrEmptyCorrection
		}
	}
	return nil
}

func sameTurns(a, b []catalog.Turn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Role != b[i].Role {
			return false
		}
		if strings.TrimSpace(a[i].Content) != strings.TrimSpace(b[i].Content) {
			return false
		}
	}
	return true
}
