// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gmapsimage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// ImportResult summarizes an ImportDirectory call.
type ImportResult struct {
	Imported int
	Skipped  int
	Bytes    int64
}

// ImportDirectory copies all images named by their cache key (see
// Request.CacheKey) from dir into the cache. This way images downloaded
// before, for example in ~/.cache/gmaps-image/, can be moved to another
// cache. Files with other names are skipped, existing entries are replaced.
func ImportDirectory(ctx context.Context, cache TileCache, dir string, recursive bool) (ImportResult, error) {
	var res ImportResult
	root, absErr := filepath.Abs(dir)
	if absErr != nil {
		return res, errors.Wrapf(absErr, "can't import %s", dir)
	}
	paths, listErr := listCacheFiles(root, recursive)
	if listErr != nil {
		return res, errors.Wrapf(listErr, "can't import %s", root)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := filepath.Base(path)
		if _, parseErr := ParseCacheKey(name); parseErr != nil {
			res.Skipped++
			continue
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return res, errors.Wrapf(readErr, "can't import %s", path)
		}
		if putErr := cache.Put(ctx, name, data); putErr != nil {
			return res, putErr
		}
		res.Imported++
		res.Bytes += int64(len(data))
	}
	log.WithFields(log.Fields{
		"dir":      root,
		"imported": res.Imported,
		"skipped":  res.Skipped,
	}).Info("Imported images into tile cache")
	return res, nil
}

func listCacheFiles(root string, recursive bool) ([]string, error) {
	if recursive {
		return listCacheFilesRecursive(root)
	}
	return listCacheFilesNonRecursive(root)
}

func listCacheFilesRecursive(root string) ([]string, error) {
	var result []string
	walkFunc := func(path string, info os.FileInfo, err error) error {
		switch {
		case err != nil:
			return err
		case !info.IsDir() && filepath.Ext(path) == ".png":
			result = append(result, path)
			return nil
		default:
			return nil
		}
	}
	if err := filepath.Walk(root, walkFunc); err != nil {
		return nil, err
	}
	return result, nil
}

func listCacheFilesNonRecursive(root string) ([]string, error) {
	files, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var result []string
	for _, file := range files {
		if !file.IsDir() && filepath.Ext(file.Name()) == ".png" {
			result = append(result, filepath.Join(root, file.Name()))
		}
	}
	return result, nil
}
