package riot

import (
	"errors"
	"sort"
	"testing"
)

func TestClusterFor(t *testing.T) {
	tests := []struct {
		region string
		want   string
	}{
		{"kr", "asia"},
		{"jp1", "asia"},
		{"na1", "americas"},
		{"br1", "americas"},
		{"euw1", "europe"},
		{"ru", "europe"},
		{"oc1", "sea"},
		{"vn2", "sea"},
	}

	for _, tt := range tests {
		got, err := ClusterFor(tt.region)
		if err != nil {
			t.Errorf("ClusterFor(%q) returned error: %v", tt.region, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ClusterFor(%q) = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestClusterForUnknown(t *testing.T) {
	_, err := ClusterFor("moon1")
	if !errors.Is(err, ErrUnknownRegion) {
		t.Errorf("error = %v, want ErrUnknownRegion", err)
	}
}

func TestRegionsSorted(t *testing.T) {
	regions := Regions()
	if len(regions) != len(regionToCluster) {
		t.Fatalf("Regions() returned %d entries, want %d", len(regions), len(regionToCluster))
	}
	if !sort.StringsAreSorted(regions) {
		t.Errorf("Regions() not sorted: %v", regions)
	}
}
