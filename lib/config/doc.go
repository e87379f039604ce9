// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for humanthrift.
//
// Configuration is loaded from a single file specified by either the
// HUMANTHRIFT_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production logs at warn unless told
// otherwise.
//
// Variable expansion is performed on schema paths and gateway
// addresses after loading: ${HOME} and ${VAR:-default} patterns are
// expanded. Relative schema paths are then resolved against the
// directory holding the config file.
//
// This package depends on no other humanthrift packages.
package config
