package vtxconfig

import "testing"

func TestApplyDefaultsTX(t *testing.T) {
	var cfg TXConfig
	ApplyDefaultsTX(&cfg)
	if cfg.MTU != DefaultMTU || cfg.MaxRetrans != DefaultMaxRetrans ||
		cfg.HeartbeatIntervalMS != DefaultHeartbeatIntervalMS {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateTXRejectsSmallMTU(t *testing.T) {
	cfg := TXConfig{MTU: 10}
	ApplyDefaultsTX(&cfg)
	cfg.MTU = 10
	if err := ValidateTX(cfg); err == nil {
		t.Fatal("expected rejection of MTU smaller than the header")
	}
}

func TestValidateTXRejectsZeroRetrans(t *testing.T) {
	var cfg TXConfig
	ApplyDefaultsTX(&cfg)
	cfg.MaxRetrans = 0
	if err := ValidateTX(cfg); err == nil {
		t.Fatal("expected rejection of max_retrans=0")
	}
}

func TestApplyDefaultsRX(t *testing.T) {
	var cfg RXConfig
	ApplyDefaultsRX(&cfg)
	if err := ValidateRX(cfg); err != nil {
		t.Fatalf("defaulted RXConfig should validate: %v", err)
	}
}
