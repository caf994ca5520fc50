package coordinator

// Word pools for pairwise room codes. Codes are adjective-noun-tail, short
// enough to read over a call and large enough (~4k combinations per pool
// pair) that collisions are retried, not prevented.
var codeAdjectives = []string{
	"amber", "brisk", "calm", "dapper", "eager", "fuzzy", "gentle", "happy",
	"ivory", "jolly", "keen", "lively", "mellow", "nimble", "quiet", "sunny",
}

var codeNouns = []string{
	"badger", "comet", "dune", "ember", "falcon", "glacier", "harbor", "iris",
	"jungle", "kelp", "lantern", "meadow", "nebula", "otter", "pebble", "reef",
}

var codeTails = []string{
	"axis", "bay", "cove", "delta", "echo", "fjord", "grove", "hill",
	"isle", "knoll", "lagoon", "mesa", "north", "oasis", "peak", "ridge",
}
