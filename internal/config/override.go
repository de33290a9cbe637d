// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/rapidaai/sessionrouter/internal/types"
)

// overrideDecodeHooks matches the decode path viper itself uses
// internally for duration fields, so a destination override map loaded
// from YAML/JSON config ("timeout_connect: 5s") decodes the same way an
// AppConfig field would.
var overrideDecodeHooks = mapstructure.ComposeDecodeHookFunc(
	mapstructure.StringToTimeDurationHookFunc(),
)

// DecodeTransportParamsOverride decodes an arbitrary map (typically one
// destination entry's "params_override" block read via viper's
// AllSettings) into a types.TransportParams override, per xrsr_dst_params_t
// field names.
func DecodeTransportParamsOverride(raw map[string]any) (*types.TransportParams, error) {
	var out types.TransportParams
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: overrideDecodeHooks,
		Result:     &out,
		TagName:    "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("sessionrouter: build override decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("sessionrouter: decode transport params override: %w", err)
	}
	return &out, nil
}
