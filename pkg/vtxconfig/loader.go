package vtxconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadTX loads a TXConfig from a YAML/JSON/TOML file at path, with VTX_
// prefixed environment overrides (dots and dashes replaced with
// underscores), applying spec.md §6 defaults for anything left unset. JSON
// documents are schema-validated first via ValidateDocument. Grounded on
// firestige-Otus's internal/otus/config/loader.go Load function.
func LoadTX(path string) (TXConfig, error) {
	var cfg TXConfig
	v, err := newViper(path)
	if err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("vtxconfig: unmarshal tx config: %w", err)
	}
	ApplyDefaultsTX(&cfg)
	if err := ValidateTX(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadRX mirrors LoadTX for RXConfig.
func LoadRX(path string) (RXConfig, error) {
	var cfg RXConfig
	v, err := newViper(path)
	if err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("vtxconfig: unmarshal rx config: %w", err)
	}
	ApplyDefaultsRX(&cfg)
	if err := ValidateRX(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)

	v.SetConfigName(name)
	v.SetConfigType(strings.TrimPrefix(ext, "."))
	v.AddConfigPath(dir)

	v.SetEnvPrefix("VTX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if strings.EqualFold(strings.TrimPrefix(ext, "."), "json") {
		if err := ValidateDocument(path); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("vtxconfig: read config %s: %w", path, err)
	}
	return v, nil
}
