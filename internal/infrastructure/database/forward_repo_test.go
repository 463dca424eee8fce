package database

import (
	"strings"
	"testing"

	"github.com/bimakw/token-forwarder/internal/domain/entities"
)

func TestBuildFilterQuery(t *testing.T) {
	network := "Ethereum"
	token := "0xdac17f958d2ee523a2206206994597c13d831ec7"
	status := entities.ForwardConfirmed
	trigger := entities.TriggerSweep

	tests := []struct {
		name      string
		filter    entities.ForwardFilter
		countOnly bool
		contains  []string
		argCount  int
	}{
		{
			name:     "no filters",
			filter:   entities.DefaultForwardFilter(),
			contains: []string{"FROM forwards", "ORDER BY created_at DESC", "LIMIT $1 OFFSET $2"},
			argCount: 2,
		},
		{
			name: "all filters",
			filter: entities.ForwardFilter{
				Network:      &network,
				TokenAddress: &token,
				Status:       &status,
				Trigger:      &trigger,
				Limit:        10,
				Offset:       20,
			},
			contains: []string{
				"network = $1",
				"token_address = $2",
				"status = $3",
				"trigger_kind = $4",
				"LIMIT $5 OFFSET $6",
			},
			argCount: 6,
		},
		{
			name:      "count with network",
			filter:    entities.ForwardFilter{Network: &network},
			countOnly: true,
			contains:  []string{"SELECT COUNT(*) FROM forwards WHERE network = $1"},
			argCount:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildFilterQuery(tt.filter, tt.countOnly)

			for _, want := range tt.contains {
				if !strings.Contains(query, want) {
					t.Errorf("query missing %q:\n%s", want, query)
				}
			}
			if len(args) != tt.argCount {
				t.Errorf("expected %d args, got %d: %v", tt.argCount, len(args), args)
			}
			if tt.countOnly && strings.Contains(query, "LIMIT") {
				t.Errorf("count query should not be paginated:\n%s", query)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	f := entities.Forward{AmountString: "1000000000000000000000000"}
	parseAmount(&f)

	if f.Amount == nil || f.Amount.String() != "1000000000000000000000000" {
		t.Errorf("unexpected amount %v", f.Amount)
	}

	bad := entities.Forward{AmountString: "not-a-number"}
	parseAmount(&bad)
	if bad.Amount != nil {
		t.Errorf("expected nil amount for invalid input, got %s", bad.Amount)
	}
}

func TestBuildStatsQuery(t *testing.T) {
	token := "0xdac17f958d2ee523a2206206994597c13d831ec7"
	network := "Base"

	query, args := buildStatsQuery(token, nil)
	if len(args) != 1 || args[0] != token {
		t.Errorf("unexpected args %v", args)
	}
	if strings.Contains(query, "network = $2") {
		t.Error("did not expect a network clause")
	}
	for _, want := range []string{"FROM forwards", "token_address = $1", "FILTER (WHERE status = 'confirmed')", "COALESCE(MAX(token_decimals), 18)"} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q", want)
		}
	}

	query, args = buildStatsQuery(token, &network)
	if len(args) != 2 || args[1] != network {
		t.Errorf("unexpected args %v", args)
	}
	if !strings.Contains(query, "AND network = $2") {
		t.Error("expected a network clause")
	}
}
