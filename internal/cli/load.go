package cli

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/ppiankov/claimcheck/internal/model"
)

// envPrefix namespaces every config key, e.g. CLAIMCHECK_LLM_TIMEOUT
const envPrefix = "CLAIMCHECK"

// Conventional credential variables accepted next to the prefixed ones
var credentialEnv = map[string][]string{
	"search.api_key":    {"SERPAPI_KEY", "SERPAPI_API_KEY"},
	"retrieval.api_key": {"JINA_API_KEY"},
}

// llmKeyEnv maps a provider to its conventional API key variable
var llmKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
}

// registerKeys seeds viper with the default config and binds an environment
// variable to every key, so env values and flag defaults resolve in the
// right order during Unmarshal
func registerKeys(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	walkConfig(reflect.ValueOf(*model.DefaultConfig()), "", func(key string, val any) {
		v.SetDefault(key, val)
		names := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		names = append(names, credentialEnv[key]...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	})
}

// walkConfig visits the leaf fields of a config struct by dotted mapstructure key
func walkConfig(val reflect.Value, prefix string, visit func(key string, val any)) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			walkConfig(val.Field(i), key, visit)
			continue
		}
		visit(key, val.Field(i).Interface())
	}
}

// loadConfig merges defaults, config file, environment and flags, in
// increasing priority, then validates the result
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg, err := decodeConfig(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeConfig is loadConfig without validation, for commands that report
// problems instead of failing on them
func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	provider := strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.APIKey == "" {
		if name, ok := llmKeyEnv[provider]; ok {
			cfg.LLM.APIKey = os.Getenv(name)
		}
	}
	if provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.LLM.HTTPProxy == "" {
		cfg.LLM.HTTPProxy = os.Getenv("HTTP_PROXY")
	}
	if cfg.LLM.HTTPSProxy == "" {
		cfg.LLM.HTTPSProxy = os.Getenv("HTTPS_PROXY")
	}

	return cfg, nil
}

// redacted returns a copy safe to print
func redacted(cfg *model.Config) *model.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.LLM.APIKey = mask(cfg.LLM.APIKey)
	out.Search.APIKey = mask(cfg.Search.APIKey)
	out.Retrieval.APIKey = mask(cfg.Retrieval.APIKey)
	out.Cache.RedisPassword = mask(cfg.Cache.RedisPassword)
	return &out
}
