package features

// IncomeBracket discretises 30-day cash inflow.
type IncomeBracket int

const (
	Low IncomeBracket = iota
	Medium
	High
	VeryHigh
)

const (
	MediumIncomeThreshold   = 2000.0
	HighIncomeThreshold     = 5000.0
	VeryHighIncomeThreshold = 10000.0
)

// encodedBrackets are the brackets that own a one-hot column. Low is the
// dropped reference level.
var encodedBrackets = []IncomeBracket{Medium, High, VeryHigh}

func BracketFor(cash float64) IncomeBracket {
	switch {
	case cash < MediumIncomeThreshold:
		return Low
	case cash < HighIncomeThreshold:
		return Medium
	case cash < VeryHighIncomeThreshold:
		return High
	default:
		return VeryHigh
	}
}

func (b IncomeBracket) String() string {
	switch b {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case VeryHigh:
		return "Very High"
	default:
		return "Unknown"
	}
}

// Column returns the one-hot column name for the bracket, or "" for Low.
func (b IncomeBracket) Column() string {
	if b == Low || b.String() == "Unknown" {
		return ""
	}
	return "income_bracket_" + b.String()
}
