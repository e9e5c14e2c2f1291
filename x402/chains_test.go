package x402

import "testing"

func TestChainByID(t *testing.T) {
	tests := []struct {
		name     string
		chainID  int64
		wantUSDC string
		wantErr  bool
	}{
		{"base mainnet", ChainBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", false},
		{"base sepolia", ChainBaseSepolia, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", false},
		{"ethereum", ChainEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", false},
		{"polygon", ChainPolygon, "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", false},
		{"unknown chain", 999999, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ChainByID(tt.chainID)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown chain")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.USDCAddress != tt.wantUSDC {
				t.Errorf("USDCAddress = %s; want %s", cfg.USDCAddress, tt.wantUSDC)
			}
			if cfg.ChainID != tt.chainID {
				t.Errorf("ChainID = %d; want %d", cfg.ChainID, tt.chainID)
			}
		})
	}
}

func TestDefaultChain(t *testing.T) {
	cfg := DefaultChain()
	if cfg.ChainID != ChainBase {
		t.Errorf("default chain = %d; want %d (Base)", cfg.ChainID, ChainBase)
	}
	if cfg.EIP3009Name == "" || cfg.EIP3009Version == "" {
		t.Error("default chain missing EIP-3009 domain parameters")
	}
}
