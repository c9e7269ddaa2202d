package main

import (
	"flag"

	"github.com/danmuck/edgexfer/internal/config"
	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/rs/zerolog/log"
)

func defaultPath(kind string) string {
	switch kind {
	case "send":
		return "cmd/xfersend/config.toml"
	case "recv":
		return "cmd/xferrecv/config.toml"
	case "manifest":
		return "cmd/xfersend/manifest.toml"
	default:
		log.Fatal().Msgf("unknown kind: %s", kind)
		return ""
	}
}

func main() {
	kind := flag.String("kind", "send", "config kind: send|recv|manifest")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()
	observability.InitLogger("configgen")

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		if err := config.Validate(path, *kind); err != nil {
			log.Fatal().Err(err).Msg("configgen failed")
		}
		log.Info().Msgf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("configgen failed")
	}
	log.Info().Msgf("Wrote %s config template to %s", *kind, target)
}
