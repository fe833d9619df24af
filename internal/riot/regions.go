package riot

import "sort"

// Regional platform codes route live-game (spectator) and summoner calls.
// Clusters are the higher-level routing groups used by account identity and
// match history calls.
var regionToCluster = map[string]string{
	"br1":  "americas",
	"la1":  "americas",
	"la2":  "americas",
	"na1":  "americas",
	"eun1": "europe",
	"euw1": "europe",
	"ru":   "europe",
	"tr1":  "europe",
	"jp1":  "asia",
	"kr":   "asia",
	"oc1":  "sea",
	"ph2":  "sea",
	"sg2":  "sea",
	"th2":  "sea",
	"tw2":  "sea",
	"vn2":  "sea",
}

// ClusterFor maps a regional platform code to its routing cluster.
func ClusterFor(region string) (string, error) {
	c, ok := regionToCluster[region]
	if !ok {
		return "", ErrUnknownRegion
	}
	return c, nil
}

// Regions returns all known regional platform codes, sorted.
func Regions() []string {
	out := make([]string, 0, len(regionToCluster))
	for r := range regionToCluster {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
