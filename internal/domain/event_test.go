package domain_test

import (
	"testing"

	"github.com/mitra-labs/predcore/internal/domain"
)

func TestParseSettlementType(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    domain.SettlementType
		wantErr bool
	}{
		{"lowercase manual", "manual", domain.SettlementManual, false},
		{"uppercase-first Manual", "Manual", domain.SettlementManual, false},
		{"all caps ORACLE", "ORACLE", domain.SettlementOracle, false},
		{"mixed case Consensus", "Consensus", domain.SettlementConsensus, false},
		{"unknown value", "bogus", "", true},
		{"empty string", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseSettlementType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSettlementType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSettlementType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
