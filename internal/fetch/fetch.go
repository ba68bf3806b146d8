// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package fetch retrieves configuration files by URL using Hashicorp's
// go-getter, so a config can live on local disk, HTTP, git, or anywhere else
// go-getter reaches.
package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter/v2"
)

// ErrGetConfigFile is returned when the file cannot be retrieved.
var ErrGetConfigFile = errors.New("failed to get config file")

// URL retrieves the content at the specified URL into a temporary location,
// reads it, and cleans up.
func URL(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, ErrGetConfigFile
	}

	tmpDir, err := os.MkdirTemp("", "autoqac-getter-*")
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "config.yaml"),
		Pwd:     wd,
		GetMode: getter.ModeFile,
	}

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	data, err := os.ReadFile(res.Dst)
	if err != nil {
		return nil, errors.Join(ErrGetConfigFile, err)
	}

	return data, nil
}
