package domain

import "testing"

func TestExceeded(t *testing.T) {
	base := Quota{
		MaxTransactions:        10,
		MaxDeletedTransactions: 10,
		MaxProperties:          5,
		MaxDeletedProperties:   5,
	}

	cases := []struct {
		name   string
		mutate func(*Quota)
		want   string
	}{
		{"within limits", func(q *Quota) {
			q.NumTransactions = 10
			q.NumProperties = 5
		}, ""},
		{"transactions over", func(q *Quota) { q.NumTransactions = 11 }, "transactions"},
		{"deleted transactions over", func(q *Quota) { q.NumDeletedTransactions = 11 }, "deleted_transactions"},
		{"properties over", func(q *Quota) { q.NumProperties = 6 }, "properties"},
		{"deleted properties over", func(q *Quota) { q.NumDeletedProperties = 6 }, "deleted_properties"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quota := base
			tc.mutate(&quota)
			if got := quota.Exceeded(); got != tc.want {
				t.Fatalf("Exceeded() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	if limits.MaxTransactions != 1000 || limits.MaxDeletedTransactions != 1000 {
		t.Fatalf("unexpected transaction limits %+v", limits)
	}
	if limits.MaxProperties != 100 || limits.MaxDeletedProperties != 100 {
		t.Fatalf("unexpected property limits %+v", limits)
	}
}
