package utils

import "testing"

// AtoiDefault backs the days_back query parameters on the summary
// endpoints, so a bad value must fall back rather than fail.
func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		name string
		s    string
		def  int
		want int
	}{
		{"absent param", "", 30, 30},
		{"plain value", "7", 30, 7},
		{"negative passes through", "-13", 30, -13},
		{"leading zeros", "0012", 30, 12},
		{"garbage", "week", 30, 30},
		{"untrimmed input", " 7", 30, 30},
		{"overflow", "999999999999999999999999", 30, 30},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AtoiDefault(tc.s, tc.def); got != tc.want {
				t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
			}
		})
	}
}
