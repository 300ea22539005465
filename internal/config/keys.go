package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "GRIDVIZ_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "GRIDVIZ_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
	{
		env: "GRIDVIZ_INFERENCE_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Inference.BaseURL = v.(string) },
	},
	{
		env: "GRIDVIZ_INFERENCE_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Inference.Model = v.(string) },
	},
	{
		env: "GRIDVIZ_INFERENCE_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Inference.APIKey = v.(string) },
	},
	{
		env: "GRIDVIZ_ANALYTICS_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Analytics.URL = v.(string) },
	},
	{
		env: "GRIDVIZ_ANALYTICS_PING_TIMEOUT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Analytics.PingTimeout = v.(string) },
	},
	{
		env: "GRIDVIZ_ANALYTICS_MAX_OPEN_CONNS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Analytics.MaxOpenConns = v.(int) },
	},
	{
		env: "GRIDVIZ_GRAFANA_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Grafana.BaseURL = v.(string) },
	},
	{
		env: "GRIDVIZ_GRAFANA_USERNAME", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Grafana.Username = v.(string) },
	},
	{
		env: "GRIDVIZ_GRAFANA_PASSWORD", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Grafana.Password = v.(string) },
	},
	{
		env: "GRIDVIZ_GRAFANA_DATASOURCE_UID", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Grafana.DatasourceUID = v.(string) },
	},
	{
		env: "GRIDVIZ_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "GRIDVIZ_PIPELINE_PREVIEW_LIMIT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Pipeline.PreviewLimit = v.(int) },
	},
	{
		env: "GRIDVIZ_PIPELINE_PREVIEW_WINDOW", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Pipeline.PreviewWindow = v.(string) },
	},
	{
		env: "GRIDVIZ_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.API.Token = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
