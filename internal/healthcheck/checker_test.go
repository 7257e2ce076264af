package healthcheck

import (
	"context"
	"testing"
)

type testChecker struct {
	items []CheckResult
}

func (c *testChecker) ListChecks(ctx context.Context) []CheckResult {
	return c.items
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		checkers []Checker
		want     string
		count    int
	}{
		{name: "no checkers", want: StatusOK},
		{
			name: "all ok",
			checkers: []Checker{
				&testChecker{items: []CheckResult{{ID: "b", Status: StatusOK}}},
				&testChecker{items: []CheckResult{{ID: "a", Status: StatusOK}}},
			},
			want:  StatusOK,
			count: 2,
		},
		{
			name: "warn wins over ok",
			checkers: []Checker{
				&testChecker{items: []CheckResult{{ID: "a", Status: StatusOK}, {ID: "b", Status: StatusWarn}}},
				nil,
			},
			want:  StatusWarn,
			count: 2,
		},
		{
			name: "error wins",
			checkers: []Checker{
				&testChecker{items: []CheckResult{{ID: "a", Status: StatusError}}},
				&testChecker{items: []CheckResult{{ID: "b", Status: StatusWarn}}},
			},
			want:  StatusError,
			count: 2,
		},
	}

	for _, tc := range cases {
		report := Run(context.Background(), tc.checkers...)
		if report.Status != tc.want || len(report.Checks) != tc.count {
			t.Fatalf("%s: got status=%s checks=%d", tc.name, report.Status, len(report.Checks))
		}
		for i := 1; i < len(report.Checks); i++ {
			if report.Checks[i-1].ID > report.Checks[i].ID {
				t.Fatalf("%s: checks not sorted by id", tc.name)
			}
		}
	}
}
