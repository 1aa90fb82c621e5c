package eval

import "fmt"

// Score is a signed position or move score in centipawns, from the
// side-to-move's perspective. Mate scores are encoded as MateValue minus
// the number of plies to mate (so closer mates have a larger magnitude),
// which lets ordinary comparison operators work uniformly with material
// scores (§4.10).
type Score int32

const (
	NegInf           Score = MinScore - 1
	MinScore         Score = -1000000
	MaxScore         Score = 1000000
	Inf              Score = MaxScore + 1
	MateValue        Score = 900000
	MateThreshold    Score = MateValue - 1000 // scores beyond this are forced mates
)

func (s Score) String() string {
	if s > MateThreshold {
		return fmt.Sprintf("mate %d", (MateValue-s+1)/2)
	}
	if s < -MateThreshold {
		return fmt.Sprintf("mate %d", -(MateValue+s+1)/2)
	}
	return fmt.Sprintf("%.2f", float64(s)/100)
}

// IsMate reports whether the score represents a forced mate.
func (s Score) IsMate() bool {
	return s > MateThreshold || s < -MateThreshold
}

// Mated returns the score for being checkmated at the given ply.
func Mated(ply int) Score {
	return -MateValue + Score(ply)
}

// Mate returns the score for delivering checkmate at the given ply.
func Mate(ply int) Score {
	return MateValue - Score(ply)
}

func Crop(s Score) Score {
	switch {
	case s > MaxScore:
		return MaxScore
	case s < MinScore:
		return MinScore
	default:
		return s
	}
}

func Max(a, b Score) Score {
	if a < b {
		return b
	}
	return a
}

func Min(a, b Score) Score {
	if a < b {
		return a
	}
	return b
}
