package symbols

import "strings"

// Universe represents a predefined stock universe
type Universe string

const (
	UniverseVN30 Universe = "vn30"
	UniverseTest Universe = "test" // Small set for testing
)

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) []string {
	switch Universe(strings.ToLower(string(u))) {
	case UniverseVN30:
		return VN30Symbols
	case UniverseTest:
		return TestSymbols
	default:
		return nil
	}
}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{"FPT", "VNM", "VCB", "HPG", "MWG"}

// VN30Symbols is used when the live VN30 listing cannot be fetched.
// Index reviews change membership twice a year, so it may lag.
var VN30Symbols = []string{
	"ACB", "BCM", "BID", "BVH", "CTG", "FPT", "GAS", "GVR", "HDB", "HPG",
	"MBB", "MSN", "MWG", "PLX", "POW", "SAB", "SSI", "STB", "TCB", "TPB",
	"VCB", "VHM", "VIB", "VIC", "VJC", "VNM", "VPB", "VRE", "SHB",
}
