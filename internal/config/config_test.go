package config

import (
	"reflect"
	"testing"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		defaultVal string
		envValue   string
		want       string
	}{
		{
			name:       "Environment variable exists",
			key:        "TEST_KEY_EXISTS",
			defaultVal: "default",
			envValue:   "custom_value",
			want:       "custom_value",
		},
		{
			name:       "Environment variable does not exist",
			key:        "TEST_KEY_NOT_EXISTS",
			defaultVal: "default_value",
			want:       "default_value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := getEnv(tt.key, tt.defaultVal); got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt64(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal int64
		want       int64
	}{
		{"Valid integer", "250000", 1, 250000},
		{"Invalid integer", "lots", 7, 7},
		{"Empty value", "", 9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv("TEST_INT64", tt.envValue)
			}
			if got := getEnvAsInt64("TEST_INT64", tt.defaultVal); got != tt.want {
				t.Errorf("getEnvAsInt64() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", " alice, ,bob ")
	if got := getEnvAsList("TEST_LIST", nil); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("getEnvAsList() = %v", got)
	}

	t.Setenv("TEST_LIST", " , ")
	if got := getEnvAsList("TEST_LIST", []string{"x"}); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("getEnvAsList() blanks = %v, want default", got)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("BET_MIN", "5")
	t.Setenv("OPERATOR_IDS", "dealer-1,dealer-2")

	cfg := Load()
	if cfg.BetMin != 5 {
		t.Errorf("BetMin = %d, want 5", cfg.BetMin)
	}
	if len(cfg.OperatorIDs) != 2 || cfg.OperatorIDs[1] != "dealer-2" {
		t.Errorf("OperatorIDs = %v", cfg.OperatorIDs)
	}
	if cfg.RollHistoryLimit <= 0 {
		t.Errorf("RollHistoryLimit = %d, want a positive default", cfg.RollHistoryLimit)
	}
}
